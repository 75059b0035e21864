package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mrosario/funeraria/httpx"
	"github.com/mrosario/funeraria/internal/domain"
)

// writeError maps the domain error taxonomy to HTTP statuses. Validation and
// not-found errors carry actionable details; render/precondition failures are
// logged server-side and surfaced as a generic message the caller cannot fix.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", ve.Fields)
		return
	}
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		httpx.JSONError(w, http.StatusNotFound, "not_found", map[string]any{"resource": nf.Resource, "id": nf.ID})
		return
	}
	var pe *domain.PermissionError
	if errors.As(err, &pe) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	var re *domain.RenderError
	if errors.As(err, &re) {
		log.Error("document render failed", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	var pre *domain.PreconditionError
	if errors.As(err, &pre) {
		log.Error("lifecycle precondition violated", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	log.Error("unexpected error", zap.Error(err))
	httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
}
