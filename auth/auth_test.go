package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func sessionRequest(t *testing.T, userID uint) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	CreateSession(rec, userID)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSessionRoundTrip(t *testing.T) {
	req := sessionRequest(t, 42)
	uid, ok := ParseSession(req)
	if !ok || uid != 42 {
		t.Fatalf("ParseSession = %d, %v", uid, ok)
	}
}

func TestParseSessionRejectsTampering(t *testing.T) {
	req := sessionRequest(t, 42)
	c, err := req.Cookie("session")
	if err != nil {
		t.Fatalf("cookie: %v", err)
	}
	parts := strings.SplitN(c.Value, ".", 2)
	forged := httptest.NewRequest(http.MethodGet, "/", nil)
	forged.AddCookie(&http.Cookie{Name: "session", Value: "99." + parts[1]})
	if _, ok := ParseSession(forged); ok {
		t.Fatal("forged user id accepted")
	}

	garbage := httptest.NewRequest(http.MethodGet, "/", nil)
	garbage.AddCookie(&http.Cookie{Name: "session", Value: "not-a-session"})
	if _, ok := ParseSession(garbage); ok {
		t.Fatal("malformed cookie accepted")
	}
}

func TestRequireAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := Middleware(RequireAuth(next))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("anonymous: content type %s", ct)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, sessionRequest(t, 7))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("authenticated: status %d", rec.Code)
	}
}

func TestRequireAuthRejectsVanishedUser(t *testing.T) {
	SetUserVerifier(func(_ context.Context, uid uint) bool { return uid == 7 })
	defer SetUserVerifier(nil)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	handler := Middleware(RequireAuth(next))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, sessionRequest(t, 8))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("vanished user: status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, sessionRequest(t, 7))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("existing user: status %d", rec.Code)
	}
}
