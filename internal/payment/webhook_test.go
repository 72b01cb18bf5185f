package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/funroad-api/internal/db"
	"github.com/noah-isme/funroad-api/internal/queue"
)

const webhookTestSecret = "whsec_test"

func signedRequest(t *testing.T, body string) *http.Request {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookTestSecret))
	fmt.Fprintf(mac, "%d.%s", ts, body)
	sig := hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment/stripe", bytes.NewReader([]byte(body)))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, sig))
	return req
}

type stubEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.tasks = append(s.tasks, task)
	return &asynq.TaskInfo{}, nil
}

type stubTenantQueries struct {
	tenant        db.Tenant
	found         bool
	lastSet       pgtype.UUID
	lastSubmitted bool
}

func (s *stubTenantQueries) GetTenantByStripeAccount(context.Context, string) (db.Tenant, error) {
	if !s.found {
		return db.Tenant{}, pgx.ErrNoRows
	}
	return s.tenant, nil
}

func (s *stubTenantQueries) SetTenantStripeDetails(_ context.Context, id pgtype.UUID, submitted bool) error {
	s.lastSet = id
	s.lastSubmitted = submitted
	return nil
}

func TestWebhookEnqueuesFulfillment(t *testing.T) {
	enq := &stubEnqueuer{}
	h := Webhook{
		Provider: Stripe{WebhookSecret: webhookTestSecret},
		Tasks:    enq,
	}
	body := `{
		"type": "checkout.session.completed",
		"account": "acct_alice",
		"data": {"object": {
			"id": "cs_test_1",
			"metadata": {"userId": "u-1", "tenantSlug": "alice", "productIds": "p-1,p-2"}
		}}
	}`
	rec := httptest.NewRecorder()
	h.Handle(rec, signedRequest(t, body))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	require.Len(t, enq.tasks, 1)
	require.Equal(t, queue.TypeCheckoutFulfill, enq.tasks[0].Type())
	require.Contains(t, string(enq.tasks[0].Payload()), "cs_test_1")
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := Webhook{Provider: Stripe{WebhookSecret: webhookTestSecret}, Tasks: &stubEnqueuer{}}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment/stripe", bytes.NewReader([]byte("{}")))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookDuplicateTaskAcknowledged(t *testing.T) {
	enq := &stubEnqueuer{err: asynq.ErrTaskIDConflict}
	h := Webhook{Provider: Stripe{WebhookSecret: webhookTestSecret}, Tasks: enq}
	body := `{
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_test_1", "metadata": {"userId": "u-1", "productIds": "p-1"}}}
	}`
	rec := httptest.NewRecorder()
	h.Handle(rec, signedRequest(t, body))
	require.Equal(t, http.StatusNoContent, rec.Code, "webhook replays after enqueue are acknowledged")
}

func TestWebhookAccountUpdated(t *testing.T) {
	q := &stubTenantQueries{found: true, tenant: db.Tenant{ID: db.NewUUID(), Slug: "alice"}}
	h := Webhook{Provider: Stripe{WebhookSecret: webhookTestSecret}, Q: q}
	body := `{
		"type": "account.updated",
		"account": "acct_alice",
		"data": {"object": {"id": "acct_alice", "details_submitted": true}}
	}`
	rec := httptest.NewRecorder()
	h.Handle(rec, signedRequest(t, body))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	require.True(t, q.lastSubmitted)
	require.Equal(t, q.tenant.ID, q.lastSet)
}

func TestWebhookUnknownAccountIgnored(t *testing.T) {
	q := &stubTenantQueries{found: false}
	h := Webhook{Provider: Stripe{WebhookSecret: webhookTestSecret}, Q: q}
	body := `{"type": "account.updated", "account": "acct_stranger", "data": {"object": {"id": "acct_stranger"}}}`
	rec := httptest.NewRecorder()
	h.Handle(rec, signedRequest(t, body))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	h := Webhook{Provider: Stripe{WebhookSecret: webhookTestSecret}}
	body := `{"type": "invoice.paid", "data": {"object": {"id": "in_1"}}}`
	rec := httptest.NewRecorder()
	h.Handle(rec, signedRequest(t, body))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
