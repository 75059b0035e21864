package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mrosario/funeraria/httpx"
	"github.com/mrosario/funeraria/internal/services"
)

type LedgerHandler struct {
	Svc *services.LedgerService
	Log *zap.Logger
}

func NewLedgerHandler(svc *services.LedgerService, log *zap.Logger) *LedgerHandler {
	return &LedgerHandler{Svc: svc, Log: log}
}

// List: GET /ledger?status=pending
func (h *LedgerHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * limit
		}
	}
	entries, total, err := h.Svc.List(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": entries, "total": total, "limit": limit, "offset": offset})
}

// Get: GET /ledger/{id}
func (h *LedgerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	entry, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

// Pay: POST /ledger/{id}/pay
func (h *LedgerHandler) Pay(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var body struct {
		PaymentMethod string `json:"payment_method"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body) // empty body means method unspecified
	}
	entry, err := h.Svc.MarkPaid(r.Context(), id, body.PaymentMethod)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}
