package queue

import "context"

const (
	// EmailQueue carries delivery hand-offs for order notification emails.
	EmailQueue = "order.email"

	// EmailDLQ receives messages rejected as unparseable.
	EmailDLQ = "dlq.order.email"
)

// Publisher is the dispatch hand-off port. The checkout path publishes a
// DeliveryMessage right after the insert commits and returns without
// waiting for the delivery attempt.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg DeliveryMessage) error
	Close() error
}

// MessageHandler runs one delivery attempt for a handed-off order. A
// completed attempt returns nil whatever the send outcome; errors are
// reserved for infrastructure failures (retries are driven by the store
// state and the sweep, not by redelivery).
type MessageHandler func(ctx context.Context, msg DeliveryMessage) error

// Consumer drains a queue of delivery hand-offs.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
