package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/funroad-api/internal/db"
	"github.com/noah-isme/funroad-api/internal/events"
	"github.com/noah-isme/funroad-api/internal/obs"
)

type queryProvider interface {
	GetProductsByIDs(ctx context.Context, ids []pgtype.UUID, tenantSlug string) ([]db.ProductRow, error)
	GetTenantBySlug(ctx context.Context, slug string) (db.Tenant, error)
	CreateOrder(ctx context.Context, params db.CreateOrderParams) (db.Order, error)
}

// Fulfiller turns completed checkout sessions into order rows. It runs on
// the worker; webhook handlers only enqueue.
type Fulfiller struct {
	Q      queryProvider
	Bus    *events.Bus
	Logger *zerolog.Logger
}

// ProcessTask handles a TypeCheckoutFulfill task. Replays are safe: the
// orders table rejects duplicate (session, product) pairs and duplicates are
// skipped, not failed.
func (f *Fulfiller) ProcessTask(ctx context.Context, task *asynq.Task) error {
	if f == nil || f.Q == nil {
		return errors.New("fulfiller not configured")
	}
	var payload FulfillPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		f.count("error")
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	userID := db.ParseUUID(payload.UserID)
	if !userID.Valid || payload.CheckoutSessionID == "" {
		f.count("error")
		return fmt.Errorf("payload missing user or session: %w", asynq.SkipRetry)
	}

	ids := make([]pgtype.UUID, 0, len(payload.ProductIDs))
	for _, raw := range payload.ProductIDs {
		if id := db.ParseUUID(raw); id.Valid {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		f.count("error")
		return fmt.Errorf("payload has no product ids: %w", asynq.SkipRetry)
	}

	products, err := f.Q.GetProductsByIDs(ctx, ids, payload.TenantSlug)
	if err != nil {
		f.count("error")
		return fmt.Errorf("resolve products: %w", err)
	}

	var created int
	for _, product := range products {
		order, err := f.Q.CreateOrder(ctx, db.CreateOrderParams{
			UserID:            userID,
			ProductID:         product.ID,
			TenantID:          product.TenantID,
			Name:              product.Name,
			CheckoutSessionID: payload.CheckoutSessionID,
			StripeAccountID:   pgtype.Text{String: payload.StripeAccountID, Valid: payload.StripeAccountID != ""},
			TotalCents:        product.PriceCents,
			Currency:          product.Currency,
		})
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			f.count("error")
			return fmt.Errorf("create order: %w", err)
		}
		created++
		f.emit(ctx, events.TopicOrderCreated, map[string]any{
			"orderId":    db.UUIDString(order.ID),
			"userId":     payload.UserID,
			"productId":  db.UUIDString(product.ID),
			"tenantSlug": payload.TenantSlug,
		})
	}

	f.emit(ctx, events.TopicCheckoutCompleted, map[string]any{
		"userId":     payload.UserID,
		"tenantSlug": payload.TenantSlug,
		"sessionId":  payload.CheckoutSessionID,
	})

	if f.Logger != nil {
		f.Logger.Info().
			Str("session_id", payload.CheckoutSessionID).
			Str("tenant", payload.TenantSlug).
			Int("orders_created", created).
			Int("products", len(products)).
			Msg("checkout fulfilled")
	}
	f.count("ok")
	return nil
}

func (f *Fulfiller) emit(ctx context.Context, topic string, payload any) {
	if f.Bus == nil {
		return
	}
	if _, err := f.Bus.Emit(ctx, topic, payload); err != nil && f.Logger != nil {
		f.Logger.Warn().Err(err).Str("topic", topic).Msg("emit event")
	}
}

func (f *Fulfiller) count(result string) {
	if obs.FulfillmentTaskTotal != nil {
		obs.FulfillmentTaskTotal.WithLabelValues(result).Inc()
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
