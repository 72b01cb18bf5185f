package library

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/funroad-api/internal/common"
)

type Handler struct {
	Svc *Service
}

// List serves the signed-in user's purchased products.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "library service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in to continue", map[string]any{"redirect": "/sign-in"})
		return
	}
	page, limit := common.ParsePagination(r, 0)
	result, err := h.Svc.List(r.Context(), userID, page, limit)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// GetOne serves one purchased product with its protected content.
func (h *Handler) GetOne(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "library service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in to continue", map[string]any{"redirect": "/sign-in"})
		return
	}
	purchase, err := h.Svc.GetOne(r.Context(), userID, chi.URLParam(r, "productID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": purchase})
}
