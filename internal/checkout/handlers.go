package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/funroad-api/internal/common"
	"github.com/noah-isme/funroad-api/internal/tenant"
)

// CartCookieName identifies the device cart; it is the owner key of the
// persisted cart registry.
const CartCookieName = "funroad_cart_id"

type Handler struct {
	Svc      *Service
	Validate *validator.Validate

	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

// Owner resolves the device cart id from the cookie, minting and setting a
// fresh one when absent.
func (h *Handler) Owner(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(CartCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value
	}
	owner := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     CartCookieName,
		Value:    owner,
		Path:     "/",
		Domain:   h.CookieDomain,
		Secure:   h.CookieSecure,
		SameSite: h.CookieSameSite,
		HttpOnly: true,
		MaxAge:   60 * 60 * 24 * 365,
	})
	return owner
}

func (h *Handler) tenantSlug(r *http.Request) string {
	if slug, ok := tenant.FromContext(r.Context()); ok {
		return slug
	}
	return strings.TrimSpace(r.URL.Query().Get("tenant"))
}

// Products returns the resolved cart for the tenant storefront. Explicit ids
// take precedence over the stored cart.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	slug := h.tenantSlug(r)
	if slug == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "tenant is required", nil)
		return
	}
	var ids []string
	if raw := strings.TrimSpace(r.URL.Query().Get("ids")); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(id); trimmed != "" {
				ids = append(ids, trimmed)
			}
		}
	}
	summary, err := h.Svc.ProductsFor(r.Context(), h.Owner(w, r), slug, ids)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

type purchaseInput struct {
	TenantSlug string   `json:"tenantSlug" validate:"required"`
	ProductIDs []string `json:"productIds" validate:"required,min=1,unique,dive,required"`
}

// Purchase opens a hosted checkout session and returns its URL verbatim.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	sess, ok := common.SessionFrom(r.Context())
	if !ok || sess.UserID == "" {
		// The storefront reacts to this by routing to sign-in; the cart is
		// left untouched.
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required",
			map[string]any{"redirect": "/sign-in"})
		return
	}
	var payload purchaseInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", err.Error())
			return
		}
	}
	url, err := h.Svc.Purchase(r.Context(), h.Owner(w, r), sess, payload.TenantSlug, payload.ProductIDs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"url": url}})
}

// Reconcile consumes the success/cancel flags of a provider redirect.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	slug := h.tenantSlug(r)
	if slug == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "tenant is required", nil)
		return
	}
	flags := ParseFlags(r.URL.Query())
	userID, _ := common.UserID(r.Context())
	result, err := h.Svc.Reconcile(r.Context(), h.Owner(w, r), userID, slug, flags)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Verify returns a merchant onboarding link for the signed-in user.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	url, err := h.Svc.Verify(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"url": url}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	common.WriteError(w, err)
}
