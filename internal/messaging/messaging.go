package messaging

import "context"

const (
	// ChangesTopic carries entity.OrderChanged payloads keyed by shop id.
	ChangesTopic          = "print_jobs.changes"
	OrdersPlacedTopic     = "orders.placed"
	PaymentConfirmedTopic = "orders.payment_confirmed"
	OrdersCompletedTopic  = "orders.completed"
)

// Handler processes one message payload.
type Handler func(ctx context.Context, payload []byte) error

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
	Close() error
}

// Subscriber defines an interface for subscribing to a message topic.
// Subscribe returns once the subscription is established; messages are
// then delivered to handler from a background goroutine until the returned
// Subscription is closed or ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, groupID string, handler Handler) (Subscription, error)
}

// Subscription is a live topic subscription.
type Subscription interface {
	// Close stops delivery and waits for the in-flight handler to return.
	Close() error
}
