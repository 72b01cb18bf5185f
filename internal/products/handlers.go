package products

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/funroad-api/internal/common"
	"github.com/noah-isme/funroad-api/internal/tenant"
)

type Handler struct {
	Svc *Service
}

// List serves the storefront product listing. Tenant scoping comes from the
// resolved storefront subdomain (or header), category from the query.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "products service not configured", nil)
		return
	}
	page, limit := common.ParsePagination(r, 0)
	slug, _ := tenant.FromContext(r.Context())
	result, err := h.Svc.List(r.Context(), ListInput{
		Filters:    ParseFilters(r.URL.Query()),
		TenantSlug: slug,
		Category:   r.URL.Query().Get("category"),
		Page:       page,
		Limit:      limit,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// GetOne serves the product detail page.
func (h *Handler) GetOne(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "products service not configured", nil)
		return
	}
	userID, _ := common.UserID(r.Context())
	detail, err := h.Svc.GetOne(r.Context(), chi.URLParam(r, "productID"), userID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": detail})
}
