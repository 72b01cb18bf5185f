package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/funroad-api/internal/cartstore"
	"github.com/noah-isme/funroad-api/internal/common"
	"github.com/noah-isme/funroad-api/internal/db"
	"github.com/noah-isme/funroad-api/internal/events"
	"github.com/noah-isme/funroad-api/internal/obs"
	"github.com/noah-isme/funroad-api/internal/payment"
)

type queryProvider interface {
	GetProductsByIDs(ctx context.Context, ids []pgtype.UUID, tenantSlug string) ([]db.ProductRow, error)
	GetTenantBySlug(ctx context.Context, slug string) (db.Tenant, error)
	GetTenantByID(ctx context.Context, id pgtype.UUID) (db.Tenant, error)
	GetUserByID(ctx context.Context, id pgtype.UUID) (db.User, error)
}

// Service orchestrates the checkout flow: cart snapshots, hosted session
// creation and redirect reconciliation.
type Service struct {
	Q        queryProvider
	Carts    *cartstore.Store
	Payments payment.Provider
	Bus      *events.Bus
	Logger   *zerolog.Logger

	// AppURL is the root storefront URL; tenant storefronts live on its
	// subdomains.
	AppURL             string
	PlatformFeePercent float64

	mu       sync.Mutex
	machines map[string]*Machine
}

// CartItem is one resolved cart line for the checkout page.
type CartItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price"`
	Currency   string `json:"currency"`
	ImageURL   string `json:"image,omitempty"`
	TenantSlug string `json:"tenantSlug"`
	TenantName string `json:"tenantName"`
}

// CartSummary is the resolved cart with its running total.
type CartSummary struct {
	Docs            []CartItem `json:"docs"`
	TotalDocs       int        `json:"totalDocs"`
	TotalPriceCents int64      `json:"totalPrice"`
}

// Result describes what a redirect reconciliation did. The flags themselves
// are always consumed; clear-on-default drops them from the URL.
type Result struct {
	Success     bool   `json:"success"`
	Canceled    bool   `json:"canceled"`
	CartCleared bool   `json:"cartCleared"`
	RedirectTo  string `json:"redirectTo,omitempty"`
}

func (s *Service) machine(owner string) *Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machines == nil {
		s.machines = map[string]*Machine{}
	}
	m, ok := s.machines[owner]
	if !ok {
		m = &Machine{}
		s.machines[owner] = m
	}
	return m
}

// release drops the owner's machine once it no longer blocks anything.
// Owners are client-minted cookie ids, so dormant machines must not
// accumulate in the registry.
func (s *Service) release(owner string, m *Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machines[owner] == m && m.Dormant() {
		delete(s.machines, owner)
	}
}

// dedupeIDs drops repeated ids keeping first-seen order. A duplicated id in
// a purchase payload must not become a second line item.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Products resolves the owner's cart for a tenant into line items. When any
// cart id no longer resolves, the entire tenant cart is treated as stale:
// it is cleared and a NOT_FOUND error with a warning is returned. No partial
// repair is attempted.
func (s *Service) Products(ctx context.Context, owner, tenantSlug string) (CartSummary, error) {
	return s.ProductsFor(ctx, owner, tenantSlug, nil)
}

// ProductsFor is Products with an explicit id list; an empty list falls back
// to the stored cart. A stale id clears the tenant cart either way.
func (s *Service) ProductsFor(ctx context.Context, owner, tenantSlug string, ids []string) (CartSummary, error) {
	if s == nil || s.Q == nil || s.Carts == nil {
		return CartSummary{}, errors.New("checkout service not configured")
	}
	if len(ids) == 0 {
		var err error
		ids, err = s.Carts.ProductIDs(ctx, owner, tenantSlug)
		if err != nil {
			return CartSummary{}, err
		}
	}
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return CartSummary{Docs: []CartItem{}}, nil
	}
	summary, stale, err := s.resolve(ctx, ids, tenantSlug)
	if err != nil {
		return CartSummary{}, err
	}
	if stale {
		if clearErr := s.Carts.ClearCart(ctx, owner, tenantSlug); clearErr != nil {
			return CartSummary{}, clearErr
		}
		return CartSummary{}, &common.AppError{
			Code:       "NOT_FOUND",
			Message:    "Some products in your cart are no longer available. Your cart has been cleared.",
			HTTPStatus: http.StatusNotFound,
			Err:        common.ErrNotFound,
			Details:    map[string]any{"warning": true},
		}
	}
	return summary, nil
}

// resolve maps cart ids to products in cart order. stale is true when any id
// fails to resolve inside the tenant.
func (s *Service) resolve(ctx context.Context, ids []string, tenantSlug string) (CartSummary, bool, error) {
	pgIDs := make([]pgtype.UUID, 0, len(ids))
	for _, id := range ids {
		parsed := db.ParseUUID(id)
		if !parsed.Valid {
			return CartSummary{}, true, nil
		}
		pgIDs = append(pgIDs, parsed)
	}
	rows, err := s.Q.GetProductsByIDs(ctx, pgIDs, tenantSlug)
	if err != nil {
		return CartSummary{}, false, fmt.Errorf("resolve cart products: %w", err)
	}
	byID := make(map[string]db.ProductRow, len(rows))
	for _, row := range rows {
		byID[db.UUIDString(row.ID)] = row
	}
	summary := CartSummary{Docs: make([]CartItem, 0, len(ids))}
	for _, id := range ids {
		row, ok := byID[id]
		if !ok {
			return CartSummary{}, true, nil
		}
		summary.Docs = append(summary.Docs, CartItem{
			ID:         id,
			Name:       row.Name,
			PriceCents: row.PriceCents,
			Currency:   row.Currency,
			ImageURL:   row.ImageURL.String,
			TenantSlug: row.TenantSlug,
			TenantName: row.TenantName,
		})
		summary.TotalPriceCents += row.PriceCents
	}
	summary.TotalDocs = len(summary.Docs)
	return summary, false, nil
}

// Purchase validates the cart against the tenant and opens a hosted checkout
// session on the tenant's connected account. The returned URL is the
// provider's redirect target, passed through verbatim. The cart is never
// touched here; it survives until a successful redirect reconciles.
func (s *Service) Purchase(ctx context.Context, owner string, sess common.Session, tenantSlug string, ids []string) (string, error) {
	if s == nil || s.Q == nil || s.Payments == nil {
		return "", errors.New("checkout service not configured")
	}
	if sess.UserID == "" {
		return "", common.Unauthorized("sign in to continue")
	}
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return "", common.BadRequest("no products selected")
	}

	m := s.machine(owner)
	if err := m.BeginPurchase(); err != nil {
		return "", &common.AppError{
			Code:       "PURCHASE_IN_FLIGHT",
			Message:    "a purchase is already in progress",
			HTTPStatus: http.StatusConflict,
			Err:        err,
		}
	}

	sessionURL, err := s.createSession(ctx, sess, tenantSlug, ids)
	if err != nil {
		// The flow never left for the payment page; release the machine so
		// the buyer can retry explicitly. Nothing retries automatically.
		m.Finish()
		s.release(owner, m)
		if obs.PurchaseTotal != nil {
			obs.PurchaseTotal.WithLabelValues(tenantSlug, "error").Inc()
		}
		return "", err
	}
	m.AwaitRedirect()
	s.release(owner, m)
	if obs.PurchaseTotal != nil {
		obs.PurchaseTotal.WithLabelValues(tenantSlug, "created").Inc()
	}
	return sessionURL, nil
}

func (s *Service) createSession(ctx context.Context, sess common.Session, tenantSlug string, ids []string) (string, error) {
	summary, stale, err := s.resolve(ctx, ids, tenantSlug)
	if err != nil {
		return "", err
	}
	if stale {
		return "", common.NotFound("products not found")
	}

	tenant, err := s.Q.GetTenantBySlug(ctx, tenantSlug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", common.NotFound("tenant not found")
		}
		return "", fmt.Errorf("load tenant: %w", err)
	}
	if !tenant.StripeDetailsSubmitted || strings.TrimSpace(tenant.StripeAccountID.String) == "" {
		return "", common.BadRequest("tenant not allowed to sell products")
	}

	user, err := s.Q.GetUserByID(ctx, db.ParseUUID(sess.UserID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", common.Unauthorized("sign in to continue")
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	items := make([]payment.LineItem, 0, len(summary.Docs))
	for _, doc := range summary.Docs {
		items = append(items, payment.LineItem{
			Name:        doc.Name,
			AmountCents: doc.PriceCents,
			Currency:    doc.Currency,
			Quantity:    1,
		})
	}
	fee := int64(float64(summary.TotalPriceCents) * s.PlatformFeePercent / 100)

	session, err := s.Payments.CreateSession(ctx, payment.SessionRequest{
		AccountID:        tenant.StripeAccountID.String,
		Items:            items,
		SuccessURL:       s.tenantURL(tenantSlug, "/checkout", Flags{Success: true}),
		CancelURL:        s.tenantURL(tenantSlug, "/checkout", Flags{Cancel: true}),
		CustomerEmail:    user.Email,
		PlatformFeeCents: fee,
		Metadata: map[string]string{
			"userId":     sess.UserID,
			"tenantSlug": tenantSlug,
			"productIds": strings.Join(ids, ","),
		},
	})
	if err != nil {
		if s.Logger != nil {
			s.Logger.Error().Err(err).Str("tenant", tenantSlug).Msg("create checkout session")
		}
		return "", &common.AppError{
			Code:       "CHECKOUT_SESSION_FAILED",
			Message:    "failed to create checkout session",
			HTTPStatus: http.StatusBadGateway,
			Err:        err,
		}
	}
	return session.URL, nil
}

// Reconcile applies the effects of a provider redirect exactly once. On
// success the tenant cart is cleared and checkout.completed is emitted
// before the /library redirect target is returned; library caches are
// invalidated by the event's notifiers, never directly from here. Cancel is
// informational: the cart survives for another attempt. In every case the
// flags are consumed, so re-observing the same URL does nothing.
func (s *Service) Reconcile(ctx context.Context, owner, userID, tenantSlug string, flags Flags) (Result, error) {
	if s == nil || s.Carts == nil {
		return Result{}, errors.New("checkout service not configured")
	}
	if !flags.Set() {
		return Result{}, nil
	}
	m := s.machine(owner)
	if !m.BeginReconcile() {
		return Result{}, nil
	}
	defer func() {
		m.Finish()
		s.release(owner, m)
	}()

	if flags.Cancel {
		if obs.CheckoutReconcileTotal != nil {
			obs.CheckoutReconcileTotal.WithLabelValues("canceled").Inc()
		}
		if s.Bus != nil {
			if _, err := s.Bus.Emit(ctx, events.TopicCheckoutCanceled, map[string]string{
				"owner":      owner,
				"tenantSlug": tenantSlug,
			}); err != nil && s.Logger != nil {
				s.Logger.Warn().Err(err).Msg("emit checkout.canceled")
			}
		}
		return Result{Canceled: true}, nil
	}

	// Success: clearing the cart and invalidating caches are sequenced
	// before the navigation target is handed back.
	if err := s.Carts.ClearCart(ctx, owner, tenantSlug); err != nil {
		if obs.CheckoutReconcileTotal != nil {
			obs.CheckoutReconcileTotal.WithLabelValues("error").Inc()
		}
		return Result{}, err
	}
	if s.Bus != nil {
		if _, err := s.Bus.Emit(ctx, events.TopicCheckoutCompleted, map[string]string{
			"owner":      owner,
			"userId":     userID,
			"tenantSlug": tenantSlug,
		}); err != nil && s.Logger != nil {
			s.Logger.Warn().Err(err).Msg("emit checkout.completed")
		}
	}
	if obs.CheckoutReconcileTotal != nil {
		obs.CheckoutReconcileTotal.WithLabelValues("success").Inc()
	}
	return Result{Success: true, CartCleared: true, RedirectTo: "/library"}, nil
}

// Verify returns a merchant onboarding link for the signed-in user's tenant.
func (s *Service) Verify(ctx context.Context, userID string) (string, error) {
	if s == nil || s.Q == nil || s.Payments == nil {
		return "", errors.New("checkout service not configured")
	}
	if userID == "" {
		return "", common.Unauthorized("sign in to continue")
	}
	user, err := s.Q.GetUserByID(ctx, db.ParseUUID(userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", common.Unauthorized("sign in to continue")
		}
		return "", fmt.Errorf("load user: %w", err)
	}
	if !user.TenantID.Valid {
		return "", common.BadRequest("user has no tenant")
	}
	tenant, err := s.Q.GetTenantByID(ctx, user.TenantID)
	if err != nil {
		return "", fmt.Errorf("load tenant: %w", err)
	}
	if strings.TrimSpace(tenant.StripeAccountID.String) == "" {
		return "", common.BadRequest("tenant has no connected account")
	}
	link, err := s.Payments.CreateAccountLink(ctx, tenant.StripeAccountID.String, s.AppURL, s.AppURL)
	if err != nil {
		return "", fmt.Errorf("create account link: %w", err)
	}
	return link, nil
}

// tenantURL builds a URL on the tenant's subdomain with the given flags
// encoded clear-on-default.
func (s *Service) tenantURL(tenantSlug, path string, flags Flags) string {
	base := strings.TrimSpace(s.AppURL)
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" {
		parsed = &url.URL{Scheme: "https", Host: base}
	}
	parsed.Host = tenantSlug + "." + parsed.Host
	parsed.Path = path
	parsed.RawQuery = flags.Values().Encode()
	return parsed.String()
}
