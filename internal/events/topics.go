package events

// Topic constants for domain events emitted by the platform.
const (
	TopicCheckoutCompleted = "checkout.completed"
	TopicCheckoutCanceled  = "checkout.canceled"
	TopicOrderCreated      = "order.created"
	TopicAccountUpdated    = "account.updated"
)

// DefaultTopics returns the canonical list of emitted topics.
func DefaultTopics() []string {
	return []string{
		TopicCheckoutCompleted,
		TopicCheckoutCanceled,
		TopicOrderCreated,
		TopicAccountUpdated,
	}
}
