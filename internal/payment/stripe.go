package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Stripe talks to the Stripe API directly over its form-encoded HTTP surface.
// Sessions are created on the tenant's connected account with an application
// fee kept by the platform.
type Stripe struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	HTTP          Doer

	// Now is overridable in tests for signature tolerance checks.
	Now func() time.Time
}

const signatureTolerance = 5 * time.Minute

func (s Stripe) httpClient() Doer {
	if s.HTTP != nil {
		return s.HTTP
	}
	return http.DefaultClient
}

func (s Stripe) apiBase() string {
	base := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if base == "" {
		return "https://api.stripe.com"
	}
	return base
}

// CreateSession opens a hosted checkout session scoped to the connected account.
func (s Stripe) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	if strings.TrimSpace(req.AccountID) == "" {
		return Session{}, errors.New("connected account id is required")
	}
	if len(req.Items) == 0 {
		return Session{}, errors.New("at least one line item is required")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", req.SuccessURL)
	form.Set("cancel_url", req.CancelURL)
	form.Set("invoice_creation[enabled]", "true")
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}
	for i, item := range req.Items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.AmountCents, 10))
		form.Set(prefix+"[price_data][currency]", item.Currency)
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
	}
	if req.PlatformFeeCents > 0 {
		form.Set("payment_intent_data[application_fee_amount]", strconv.FormatInt(req.PlatformFeeCents, 10))
	}
	for key, value := range req.Metadata {
		form.Set("metadata["+key+"]", value)
	}

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := s.post(ctx, "/v1/checkout/sessions", req.AccountID, form, &out); err != nil {
		return Session{}, err
	}
	if out.URL == "" {
		return Session{}, errors.New("stripe returned a session without a url")
	}
	return Session{ID: out.ID, URL: out.URL}, nil
}

// CreateAccountLink returns an onboarding link for the connected account.
func (s Stripe) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (string, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", errors.New("connected account id is required")
	}
	form := url.Values{}
	form.Set("account", accountID)
	form.Set("refresh_url", refreshURL)
	form.Set("return_url", returnURL)
	form.Set("type", "account_onboarding")

	var out struct {
		URL string `json:"url"`
	}
	if err := s.post(ctx, "/v1/account_links", "", form, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (s Stripe) post(ctx context.Context, path, accountID string, form url.Values, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiBase()+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build stripe request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.SecretKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accountID != "" {
		httpReq.Header.Set("Stripe-Account", accountID)
	}

	resp, err := s.httpClient().Do(httpReq)
	if err != nil {
		return fmt.Errorf("call stripe: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read stripe response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &apiErr)
		if apiErr.Error.Message != "" {
			return fmt.Errorf("stripe: %s", apiErr.Error.Message)
		}
		return fmt.Errorf("stripe: unexpected status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode stripe response: %w", err)
	}
	return nil
}

// VerifyWebhook validates the Stripe-Signature header (t=...,v1=... over
// "<t>.<body>" with HMAC-SHA256) and extracts the event essentials.
func (s Stripe) VerifyWebhook(r *http.Request, body []byte) (WebhookEvent, error) {
	header := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(header) == "" {
		return WebhookEvent{}, errors.New("missing signature header")
	}
	timestamp, signatures := parseSignatureHeader(header)
	if timestamp == 0 || len(signatures) == 0 {
		return WebhookEvent{}, errors.New("malformed signature header")
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	age := now().Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return WebhookEvent{}, errors.New("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(s.WebhookSecret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	valid := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			valid = true
			break
		}
	}
	if !valid {
		return WebhookEvent{}, errors.New("invalid signature")
	}

	var payload struct {
		Type    string `json:"type"`
		Account string `json:"account"`
		Data    struct {
			Object struct {
				ID               string            `json:"id"`
				Metadata         map[string]string `json:"metadata"`
				DetailsSubmitted *bool             `json:"details_submitted"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook payload: %w", err)
	}
	event := WebhookEvent{
		Type:      payload.Type,
		AccountID: payload.Account,
		SessionID: payload.Data.Object.ID,
		Metadata:  payload.Data.Object.Metadata,
		Raw:       body,
	}
	// account.updated carries the account as the object; its id doubles as
	// the connected account id when the top-level account field is absent.
	if event.AccountID == "" && strings.HasPrefix(payload.Data.Object.ID, "acct_") {
		event.AccountID = payload.Data.Object.ID
	}
	if payload.Data.Object.DetailsSubmitted != nil {
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		event.Metadata["details_submitted"] = strconv.FormatBool(*payload.Data.Object.DetailsSubmitted)
	}
	return event, nil
}

func parseSignatureHeader(header string) (int64, []string) {
	var timestamp int64
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err == nil {
				timestamp = parsed
			}
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	return timestamp, signatures
}
