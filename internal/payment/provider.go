package payment

import (
	"context"
	"net/http"
)

// LineItem is a single product inside a hosted checkout session.
type LineItem struct {
	Name        string
	AmountCents int64
	Currency    string
	Quantity    int64
}

// SessionRequest captures everything needed to open a hosted checkout session
// against a tenant's connected account.
type SessionRequest struct {
	AccountID        string
	Items            []LineItem
	SuccessURL       string
	CancelURL        string
	CustomerEmail    string
	PlatformFeeCents int64
	// Metadata travels to the fulfillment webhook untouched.
	Metadata map[string]string
}

// Session is the provider's hosted checkout session. URL is handed back to
// the storefront verbatim.
type Session struct {
	ID  string
	URL string
}

// WebhookEvent is a verified inbound provider notification.
type WebhookEvent struct {
	Type      string
	AccountID string
	SessionID string
	Metadata  map[string]string
	Raw       []byte
}

// Provider abstracts the hosted checkout operations of the payment platform.
type Provider interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error)
	VerifyWebhook(r *http.Request, body []byte) (WebhookEvent, error)
}

// Doer executes an HTTP request. *http.Client satisfies it, as does the
// retrying circuit-breaker client used for outbound provider calls.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}
