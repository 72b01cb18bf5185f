package payment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/funroad-api/internal/common"
	"github.com/noah-isme/funroad-api/internal/db"
	"github.com/noah-isme/funroad-api/internal/events"
	"github.com/noah-isme/funroad-api/internal/obs"
	"github.com/noah-isme/funroad-api/internal/queue"
)

type webhookQueries interface {
	GetTenantByStripeAccount(ctx context.Context, accountID string) (db.Tenant, error)
	SetTenantStripeDetails(ctx context.Context, id pgtype.UUID, submitted bool) error
}

// Webhook handles inbound Stripe notifications. Completed sessions are
// queued for fulfillment on the worker; the handler itself only verifies,
// deduplicates, and enqueues.
type Webhook struct {
	Q         webhookQueries
	Provider  Provider
	Tasks     queue.Enqueuer
	Events    *events.Bus
	Replay    *redis.Client
	ReplayTTL time.Duration
	Logger    *zerolog.Logger
}

// Handle processes one Stripe webhook delivery.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	if h.Provider == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "webhook unavailable", nil)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}
	event, err := h.Provider.VerifyWebhook(r, body)
	if err != nil {
		h.count("unknown", "invalid_signature")
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", "signature verification failed", nil)
		return
	}

	if h.Replay != nil && h.ReplayTTL > 0 {
		sum := sha256.Sum256(body)
		key := "wh:stripe:" + hex.EncodeToString(sum[:])
		fresh, err := h.Replay.SetNX(r.Context(), key, "1", h.ReplayTTL).Result()
		if err != nil {
			common.JSONError(w, http.StatusInternalServerError, "REPLAY_STORE_ERROR", "replay guard unavailable", nil)
			return
		}
		if !fresh {
			h.count(event.Type, "replay")
			common.JSONError(w, http.StatusConflict, "REPLAY", "duplicate webhook", nil)
			return
		}
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleSessionCompleted(r.Context(), w, event)
	case "account.updated":
		h.handleAccountUpdated(r.Context(), w, event)
	default:
		// Unknown events acknowledge without action so Stripe stops retrying.
		h.count(event.Type, "ignored")
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h Webhook) handleSessionCompleted(ctx context.Context, w http.ResponseWriter, event WebhookEvent) {
	userID := event.Metadata["userId"]
	tenantSlug := event.Metadata["tenantSlug"]
	productIDs := splitIDs(event.Metadata["productIds"])
	if userID == "" || len(productIDs) == 0 {
		h.count(event.Type, "error")
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", "session metadata incomplete", nil)
		return
	}
	if h.Tasks == nil {
		h.count(event.Type, "error")
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "fulfillment queue unavailable", nil)
		return
	}
	task, opts, err := queue.NewFulfillmentTask(queue.FulfillPayload{
		CheckoutSessionID: event.SessionID,
		StripeAccountID:   event.AccountID,
		UserID:            userID,
		TenantSlug:        tenantSlug,
		ProductIDs:        productIDs,
	})
	if err != nil {
		h.count(event.Type, "error")
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", "session id missing", nil)
		return
	}
	if _, err := h.Tasks.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			h.count(event.Type, "replay")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.count(event.Type, "error")
		common.JSONError(w, http.StatusInternalServerError, "ENQUEUE_FAILED", "unable to queue fulfillment", nil)
		return
	}
	if h.Logger != nil {
		h.Logger.Info().
			Str("session_id", event.SessionID).
			Str("tenant", tenantSlug).
			Msg("fulfillment queued")
	}
	h.count(event.Type, "ok")
	w.WriteHeader(http.StatusNoContent)
}

func (h Webhook) handleAccountUpdated(ctx context.Context, w http.ResponseWriter, event WebhookEvent) {
	if h.Q == nil || event.AccountID == "" {
		h.count(event.Type, "error")
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_INVALID", "account id missing", nil)
		return
	}
	tenant, err := h.Q.GetTenantByStripeAccount(ctx, event.AccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Accounts we never onboarded are acknowledged, not retried.
			h.count(event.Type, "ignored")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.count(event.Type, "error")
		common.JSONError(w, http.StatusInternalServerError, "TENANT_FETCH_ERROR", "unable to load tenant", nil)
		return
	}
	submitted := event.Metadata["details_submitted"] == "true"
	if err := h.Q.SetTenantStripeDetails(ctx, tenant.ID, submitted); err != nil {
		h.count(event.Type, "error")
		common.JSONError(w, http.StatusInternalServerError, "TENANT_UPDATE_ERROR", "unable to update tenant", nil)
		return
	}
	if h.Events != nil {
		_, _ = h.Events.Emit(ctx, events.TopicAccountUpdated, map[string]any{
			"tenantSlug":       tenant.Slug,
			"accountId":        event.AccountID,
			"detailsSubmitted": submitted,
		})
	}
	h.count(event.Type, "ok")
	w.WriteHeader(http.StatusNoContent)
}

func (h Webhook) count(event, result string) {
	if obs.PaymentWebhookTotal != nil {
		obs.PaymentWebhookTotal.WithLabelValues(event, result).Inc()
	}
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}
