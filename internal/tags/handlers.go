package tags

import (
	"net/http"

	"github.com/noah-isme/funroad-api/internal/common"
)

type Handler struct {
	Svc *Service
}

// List serves the paginated tag vocabulary.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "tags service not configured", nil)
		return
	}
	page, limit := common.ParsePagination(r, 0)
	result, err := h.Svc.List(r.Context(), page, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}
