package tenant

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/funroad-api/internal/common"
)

type Handler struct {
	Svc *Service
}

// GetBySlug serves the public storefront record for a tenant.
func (h *Handler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tenant service not configured", nil)
		return
	}
	info, err := h.Svc.BySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": info})
}
