package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mrosario/funeraria/auth"
	"github.com/mrosario/funeraria/httpx"
	"github.com/mrosario/funeraria/internal/models"
	"github.com/mrosario/funeraria/internal/services"
)

type CatalogHandler struct {
	DB  *gorm.DB
	Svc *services.CatalogService
	Log *zap.Logger
}

func NewCatalogHandler(db *gorm.DB, svc *services.CatalogService, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{DB: db, Svc: svc, Log: log}
}

func (h *CatalogHandler) actor(r *http.Request) *models.User {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok || uid == 0 {
		return nil
	}
	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		return nil
	}
	return &user
}

// List: GET /catalog-items
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Svc.List(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

// Create: POST /catalog-items (admin only)
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.CatalogInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	item, err := h.Svc.Create(r.Context(), in, h.actor(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

// Price: GET /catalog-items/{id}/price
// Lets line-item entry UIs prefill the unit price before submission.
func (h *CatalogHandler) Price(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	item, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"name": item.Name, "unit_price": item.UnitPrice.StringFixed(2)})
}
