package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateSessionSendsConnectedAccountRequest(t *testing.T) {
	var gotForm map[string][]string
	var gotAccount string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		gotAccount = r.Header.Get("Stripe-Account")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_1","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`)
	}))
	defer server.Close()

	provider := Stripe{SecretKey: "sk_test", BaseURL: server.URL}
	session, err := provider.CreateSession(context.Background(), SessionRequest{
		AccountID:  "acct_123",
		SuccessURL: "https://alice.funroad.test/checkout?success=true",
		CancelURL:  "https://alice.funroad.test/checkout?cancel=true",
		Items: []LineItem{
			{Name: "E-book", AmountCents: 1500, Currency: "usd", Quantity: 1},
		},
		PlatformFeeCents: 150,
		Metadata:         map[string]string{"userId": "u1"},
	})
	require.NoError(t, err)
	require.Equal(t, "cs_test_1", session.ID)
	require.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", session.URL, "session url passes through untouched")

	require.Equal(t, "acct_123", gotAccount)
	require.Equal(t, []string{"payment"}, gotForm["mode"])
	require.Equal(t, []string{"1500"}, gotForm["line_items[0][price_data][unit_amount]"])
	require.Equal(t, []string{"150"}, gotForm["payment_intent_data[application_fee_amount]"])
	require.Equal(t, []string{"u1"}, gotForm["metadata[userId]"])
}

func TestCreateSessionRequiresAccount(t *testing.T) {
	provider := Stripe{SecretKey: "sk_test"}
	_, err := provider.CreateSession(context.Background(), SessionRequest{
		Items: []LineItem{{Name: "x", AmountCents: 100, Currency: "usd", Quantity: 1}},
	})
	require.Error(t, err)
}

func signBody(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhook(t *testing.T) {
	secret := "whsec_test"
	now := time.Now()
	body := []byte(`{"type":"checkout.session.completed","account":"acct_123","data":{"object":{"id":"cs_1","metadata":{"userId":"u1"}}}}`)

	provider := Stripe{WebhookSecret: secret, Now: func() time.Time { return now }}

	r := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment/stripe", strings.NewReader(""))
	r.Header.Set("Stripe-Signature",
		fmt.Sprintf("t=%d,v1=%s", now.Unix(), signBody(secret, now.Unix(), body)))

	event, err := provider.VerifyWebhook(r, body)
	require.NoError(t, err)
	require.Equal(t, "checkout.session.completed", event.Type)
	require.Equal(t, "acct_123", event.AccountID)
	require.Equal(t, "cs_1", event.SessionID)
	require.Equal(t, "u1", event.Metadata["userId"])
}

func TestVerifyWebhookRejectsBadSignature(t *testing.T) {
	now := time.Now()
	body := []byte(`{"type":"checkout.session.completed"}`)
	provider := Stripe{WebhookSecret: "whsec_test", Now: func() time.Time { return now }}

	r := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment/stripe", strings.NewReader(""))
	r.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=deadbeef", now.Unix()))

	_, err := provider.VerifyWebhook(r, body)
	require.Error(t, err)
}

func TestVerifyWebhookRejectsStaleTimestamp(t *testing.T) {
	secret := "whsec_test"
	now := time.Now()
	stale := now.Add(-time.Hour).Unix()
	body := []byte(`{"type":"checkout.session.completed"}`)
	provider := Stripe{WebhookSecret: secret, Now: func() time.Time { return now }}

	r := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment/stripe", strings.NewReader(""))
	r.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", stale, signBody(secret, stale, body)))

	_, err := provider.VerifyWebhook(r, body)
	require.Error(t, err)
}
