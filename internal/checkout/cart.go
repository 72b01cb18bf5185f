package checkout

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/funroad-api/internal/cartstore"
	"github.com/noah-isme/funroad-api/internal/common"
)

type cartItemInput struct {
	ProductID string `json:"productId" validate:"required"`
}

func (h *Handler) cartScope(w http.ResponseWriter, r *http.Request) (*cartstore.Store, string, bool) {
	if h.Svc == nil || h.Svc.Carts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart store not configured", nil)
		return nil, "", false
	}
	slug := h.tenantSlug(r)
	if slug == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "tenant is required", nil)
		return nil, "", false
	}
	return h.Svc.Carts, slug, true
}

func (h *Handler) decodeCartItem(w http.ResponseWriter, r *http.Request) (cartItemInput, bool) {
	var payload cartItemInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return cartItemInput{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", err.Error())
			return cartItemInput{}, false
		}
	}
	return payload, true
}

// Cart returns the raw cart contents for the resolved tenant storefront.
func (h *Handler) Cart(w http.ResponseWriter, r *http.Request) {
	carts, slug, ok := h.cartScope(w, r)
	if !ok {
		return
	}
	ids, err := carts.ProductIDs(r.Context(), h.Owner(w, r), slug)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"productIds": ids}})
}

// CartAdd puts a product into the tenant cart. Adding an id already present
// is a no-op.
func (h *Handler) CartAdd(w http.ResponseWriter, r *http.Request) {
	carts, slug, ok := h.cartScope(w, r)
	if !ok {
		return
	}
	payload, ok := h.decodeCartItem(w, r)
	if !ok {
		return
	}
	if err := carts.AddProduct(r.Context(), h.Owner(w, r), slug, payload.ProductID); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"added": true}})
}

// CartToggle flips the product's cart membership and reports the new state.
func (h *Handler) CartToggle(w http.ResponseWriter, r *http.Request) {
	carts, slug, ok := h.cartScope(w, r)
	if !ok {
		return
	}
	payload, ok := h.decodeCartItem(w, r)
	if !ok {
		return
	}
	owner := h.Owner(w, r)
	if err := carts.ToggleProduct(r.Context(), owner, slug, payload.ProductID); err != nil {
		common.WriteError(w, err)
		return
	}
	inCart, err := carts.IsProductInCart(r.Context(), owner, slug, payload.ProductID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"inCart": inCart}})
}

// CartRemove drops all occurrences of the product from the tenant cart.
func (h *Handler) CartRemove(w http.ResponseWriter, r *http.Request) {
	carts, slug, ok := h.cartScope(w, r)
	if !ok {
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "product id is required", nil)
		return
	}
	if err := carts.RemoveProduct(r.Context(), h.Owner(w, r), slug, productID); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"removed": true}})
}

// CartClear empties the tenant cart.
func (h *Handler) CartClear(w http.ResponseWriter, r *http.Request) {
	carts, slug, ok := h.cartScope(w, r)
	if !ok {
		return
	}
	if err := carts.ClearCart(r.Context(), h.Owner(w, r), slug); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"cleared": true}})
}

// CartClearAll drops every tenant cart held by this device.
func (h *Handler) CartClearAll(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Svc.Carts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart store not configured", nil)
		return
	}
	if err := h.Svc.Carts.ClearAllCarts(r.Context(), h.Owner(w, r)); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"cleared": true}})
}
