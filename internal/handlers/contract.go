package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mrosario/funeraria/auth"
	"github.com/mrosario/funeraria/httpx"
	"github.com/mrosario/funeraria/internal/models"
	"github.com/mrosario/funeraria/internal/pricing"
	"github.com/mrosario/funeraria/internal/services"
)

type ContractHandler struct {
	DB  *gorm.DB
	Svc *services.ContractService
	Log *zap.Logger
}

func NewContractHandler(db *gorm.DB, svc *services.ContractService, log *zap.Logger) *ContractHandler {
	return &ContractHandler{DB: db, Svc: svc, Log: log}
}

// actor loads the authenticated user, or nil when the session is absent.
func (h *ContractHandler) actor(r *http.Request) *models.User {
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

func pathID(r *http.Request) (uint, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

type contractResponse struct {
	ID            uint           `json:"id"`
	InvoiceNumber *string        `json:"invoice_number"`
	DeceasedID    uint           `json:"deceased_id"`
	TaxRate       string         `json:"tax_rate"`
	Notes         string         `json:"notes,omitempty"`
	ContractedAt  string         `json:"contracted_at"`
	Lines         []lineResponse `json:"line_items"`
	Subtotal      string         `json:"subtotal"`
	TaxAmount     string         `json:"tax_amount"`
	GrandTotal    string         `json:"grand_total"`
}

type lineResponse struct {
	ServiceItemID uint   `json:"service_item_id"`
	Description   string `json:"description,omitempty"`
	Quantity      int    `json:"quantity"`
	UnitPrice     string `json:"unit_price"`
	Total         string `json:"total"`
}

func toContractResponse(c *models.Contract, totals pricing.Totals) contractResponse {
	resp := contractResponse{
		ID:            c.ID,
		InvoiceNumber: c.InvoiceNumber,
		DeceasedID:    c.DeceasedID,
		TaxRate:       c.TaxRate.StringFixed(2),
		Notes:         c.Notes,
		ContractedAt:  c.ContractedAt.Format("2006-01-02T15:04:05Z07:00"),
		Subtotal:      totals.Subtotal.StringFixed(2),
		TaxAmount:     totals.TaxAmount.StringFixed(2),
		GrandTotal:    totals.GrandTotal.StringFixed(2),
	}
	for i := range c.Lines {
		l := &c.Lines[i]
		lr := lineResponse{
			ServiceItemID: l.ServiceItemID,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice.StringFixed(2),
			Total:         l.Total().StringFixed(2),
		}
		if l.ServiceItem != nil {
			lr.Description = l.ServiceItem.Name
		}
		resp.Lines = append(resp.Lines, lr)
	}
	return resp
}

// Create: POST /contracts
func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ContractInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	contract, totals, err := h.Svc.CreateAndInvoice(r.Context(), in, h.actor(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toContractResponse(contract, totals))
}

// Update: PUT /contracts/{id}
func (h *ContractHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var in services.ContractInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	contract, totals, err := h.Svc.UpdateAndReinvoice(r.Context(), id, in, h.actor(r))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toContractResponse(contract, totals))
}

// Get: GET /contracts/{id}
func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	contract, totals, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toContractResponse(contract, totals))
}

// List: GET /contracts
func (h *ContractHandler) List(w http.ResponseWriter, r *http.Request) {
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
	contracts, total, err := h.Svc.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	items := make([]contractResponse, 0, len(contracts))
	for i := range contracts {
		totals := pricing.ComputeTotals(contracts[i].TaxRate, contracts[i].Lines)
		items = append(items, toContractResponse(&contracts[i], totals))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total, "limit": limit, "offset": offset})
}

// Delete: DELETE /contracts/{id} (admin only)
func (h *ContractHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.Delete(r.Context(), id, h.actor(r)); err != nil {
		writeError(w, h.Log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Document: GET /contracts/{id}/document
func (h *ContractHandler) Document(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	data, name, err := h.Svc.FetchDocument(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	httpx.Blob(w, http.StatusOK, "application/pdf", name, data)
}
