package server

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mrosario/funeraria/auth"
	"github.com/mrosario/funeraria/httpx"
	"github.com/mrosario/funeraria/internal/config"
	"github.com/mrosario/funeraria/internal/handlers"
	"github.com/mrosario/funeraria/internal/ledger"
	"github.com/mrosario/funeraria/internal/middleware"
	"github.com/mrosario/funeraria/internal/models"
	"github.com/mrosario/funeraria/internal/policy"
	"github.com/mrosario/funeraria/internal/render"
	"github.com/mrosario/funeraria/internal/services"
	"github.com/mrosario/funeraria/internal/storage"
)

// New constructs the root http.Handler with all routes and middlewares applied.
func New(db *gorm.DB, cfg config.Config, log *zap.Logger) (http.Handler, error) {
	blobs, err := storage.NewFileStore(cfg.DocumentDir)
	if err != nil {
		return nil, err
	}
	g := policy.NewGate()
	renderer := render.NewRenderer(cfg.Issuer)
	contractSvc := services.NewContractService(db, renderer, blobs, ledger.NewRecorder(), g, cfg.DefaultTaxRate, log)
	catalogSvc := services.NewCatalogService(db, g)
	ledgerSvc := services.NewLedgerService(db)

	ch := handlers.NewContractHandler(db, contractSvc, log)
	cath := handlers.NewCatalogHandler(db, catalogSvc, log)
	lh := handlers.NewLedgerHandler(ledgerSvc, log)
	ah := handlers.NewAuthHandler(db)

	// RequireAuth re-checks that the session's user still exists.
	auth.SetUserVerifier(func(_ context.Context, uid uint) bool {
		var count int64
		if err := db.Model(&models.User{}).Where("id = ?", uid).Limit(1).Count(&count).Error; err != nil {
			return false
		}
		return count > 0
	})

	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover(log), middleware.Logging(log))

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := db.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	r.HandleFunc("/login", ah.Login).Methods(http.MethodPost)
	r.HandleFunc("/logout", ah.Logout).Methods(http.MethodPost)

	api := r.NewRoute().Subrouter()
	api.Use(auth.Middleware, auth.RequireAuth)

	api.HandleFunc("/contracts", ch.List).Methods(http.MethodGet)
	api.HandleFunc("/contracts", ch.Create).Methods(http.MethodPost)
	api.HandleFunc("/contracts/{id:[0-9]+}", ch.Get).Methods(http.MethodGet)
	api.HandleFunc("/contracts/{id:[0-9]+}", ch.Update).Methods(http.MethodPut)
	api.HandleFunc("/contracts/{id:[0-9]+}", ch.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/contracts/{id:[0-9]+}/document", ch.Document).Methods(http.MethodGet)

	api.HandleFunc("/catalog-items", cath.List).Methods(http.MethodGet)
	api.HandleFunc("/catalog-items", cath.Create).Methods(http.MethodPost)
	api.HandleFunc("/catalog-items/{id:[0-9]+}/price", cath.Price).Methods(http.MethodGet)

	api.HandleFunc("/ledger", lh.List).Methods(http.MethodGet)
	api.HandleFunc("/ledger/{id:[0-9]+}", lh.Get).Methods(http.MethodGet)
	api.HandleFunc("/ledger/{id:[0-9]+}/pay", lh.Pay).Methods(http.MethodPost)

	return r, nil
}
