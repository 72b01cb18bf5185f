package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// TypeCheckoutFulfill is the task type for recording orders after a
// completed checkout session.
const TypeCheckoutFulfill = "checkout:fulfill"

// QueueDefault is the asynq queue fulfillment tasks run on.
const QueueDefault = "default"

// FulfillPayload carries everything the worker needs to record the orders
// for one completed checkout session.
type FulfillPayload struct {
	CheckoutSessionID string   `json:"checkoutSessionId"`
	StripeAccountID   string   `json:"stripeAccountId,omitempty"`
	UserID            string   `json:"userId"`
	TenantSlug        string   `json:"tenantSlug"`
	ProductIDs        []string `json:"productIds"`
}

// NewFulfillmentTask builds the asynq task for a completed checkout session.
// The session id doubles as the task id, so webhook replays collapse into a
// single enqueued task.
func NewFulfillmentTask(payload FulfillPayload) (*asynq.Task, []asynq.Option, error) {
	if payload.CheckoutSessionID == "" {
		return nil, nil, fmt.Errorf("queue: checkout session id is required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("queue: encode payload: %w", err)
	}
	opts := []asynq.Option{
		asynq.TaskID(TypeCheckoutFulfill + ":" + payload.CheckoutSessionID),
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
		asynq.Retention(24 * time.Hour),
	}
	return asynq.NewTask(TypeCheckoutFulfill, data), opts, nil
}

// Enqueuer abstracts the asynq client for handlers that enqueue tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}
