package reviews

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/funroad-api/internal/common"
)

type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type reviewInput struct {
	Rating      int32  `json:"rating" validate:"required,min=1,max=5"`
	Description string `json:"description" validate:"max=2000"`
}

// GetOwn returns the caller's review of a product.
func (h *Handler) GetOwn(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "reviews service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in to continue", map[string]any{"redirect": "/sign-in"})
		return
	}
	review, err := h.Svc.GetOwn(r.Context(), userID, chi.URLParam(r, "productID"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": review})
}

// Create stores the caller's review of a purchased product.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "reviews service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in to continue", map[string]any{"redirect": "/sign-in"})
		return
	}
	input, ok := h.decode(w, r)
	if !ok {
		return
	}
	review, err := h.Svc.Create(r.Context(), userID, chi.URLParam(r, "productID"), input.Rating, input.Description)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": review})
}

// Update edits the caller's existing review.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "reviews service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "sign in to continue", map[string]any{"redirect": "/sign-in"})
		return
	}
	input, ok := h.decode(w, r)
	if !ok {
		return
	}
	review, err := h.Svc.Update(r.Context(), userID, chi.URLParam(r, "reviewID"), input.Rating, input.Description)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": review})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (reviewInput, bool) {
	var input reviewInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
		return input, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(input); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "rating must be between 1 and 5", nil)
			return input, false
		}
	}
	return input, true
}
