package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/funroad-api/internal/db"
	"github.com/noah-isme/funroad-api/internal/events"
)

type stubQueries struct {
	products  []db.ProductRow
	orders    []db.CreateOrderParams
	createErr map[string]error
}

func (s *stubQueries) GetProductsByIDs(context.Context, []pgtype.UUID, string) ([]db.ProductRow, error) {
	return s.products, nil
}

func (s *stubQueries) GetTenantBySlug(context.Context, string) (db.Tenant, error) {
	return db.Tenant{}, nil
}

func (s *stubQueries) CreateOrder(_ context.Context, params db.CreateOrderParams) (db.Order, error) {
	if err := s.createErr[db.UUIDString(params.ProductID)]; err != nil {
		return db.Order{}, err
	}
	s.orders = append(s.orders, params)
	return db.Order{ID: db.NewUUID(), UserID: params.UserID, ProductID: params.ProductID}, nil
}

type memEventStore struct {
	topics []string
}

func (m *memEventStore) InsertDomainEvent(_ context.Context, topic string, _ []byte) error {
	m.topics = append(m.topics, topic)
	return nil
}

func fulfillTask(t *testing.T, payload FulfillPayload) *asynq.Task {
	t.Helper()
	task, _, err := NewFulfillmentTask(payload)
	require.NoError(t, err)
	return task
}

func soldProduct(name string) db.ProductRow {
	return db.ProductRow{
		Product: db.Product{
			ID:         db.NewUUID(),
			TenantID:   db.NewUUID(),
			Name:       name,
			PriceCents: 2500,
			Currency:   "usd",
		},
		TenantSlug: "alice",
	}
}

func TestProcessTaskRecordsOrders(t *testing.T) {
	p1, p2 := soldProduct("Icons"), soldProduct("Fonts")
	q := &stubQueries{products: []db.ProductRow{p1, p2}}
	store := &memEventStore{}
	f := &Fulfiller{Q: q, Bus: &events.Bus{Store: store}}

	task := fulfillTask(t, FulfillPayload{
		CheckoutSessionID: "cs_test_1",
		StripeAccountID:   "acct_alice",
		UserID:            db.UUIDString(db.NewUUID()),
		TenantSlug:        "alice",
		ProductIDs:        []string{db.UUIDString(p1.ID), db.UUIDString(p2.ID)},
	})
	require.NoError(t, f.ProcessTask(context.Background(), task))
	require.Len(t, q.orders, 2)
	require.Equal(t, "cs_test_1", q.orders[0].CheckoutSessionID)
	require.Equal(t, int64(2500), q.orders[0].TotalCents)

	require.Equal(t, []string{
		events.TopicOrderCreated,
		events.TopicOrderCreated,
		events.TopicCheckoutCompleted,
	}, store.topics)
}

func TestProcessTaskTolerantOfReplays(t *testing.T) {
	p1 := soldProduct("Icons")
	q := &stubQueries{
		products:  []db.ProductRow{p1},
		createErr: map[string]error{db.UUIDString(p1.ID): &pgconn.PgError{Code: "23505"}},
	}
	f := &Fulfiller{Q: q, Bus: &events.Bus{Store: &memEventStore{}}}

	task := fulfillTask(t, FulfillPayload{
		CheckoutSessionID: "cs_test_1",
		UserID:            db.UUIDString(db.NewUUID()),
		TenantSlug:        "alice",
		ProductIDs:        []string{db.UUIDString(p1.ID)},
	})
	require.NoError(t, f.ProcessTask(context.Background(), task), "duplicate orders are skipped, not failed")
	require.Empty(t, q.orders)
}

func TestProcessTaskSkipsRetryOnGarbage(t *testing.T) {
	f := &Fulfiller{Q: &stubQueries{}}
	err := f.ProcessTask(context.Background(), asynq.NewTask(TypeCheckoutFulfill, []byte("not json")))
	require.Error(t, err)
	require.True(t, errors.Is(err, asynq.SkipRetry), "malformed payloads never retry")
}

func TestNewFulfillmentTaskRequiresSession(t *testing.T) {
	_, _, err := NewFulfillmentTask(FulfillPayload{UserID: "u"})
	require.Error(t, err)
}
