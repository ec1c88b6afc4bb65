// Package messaging defines the outbound message contract shared by the
// transport bindings (Kafka, RabbitMQ, in-memory).
package messaging

//go:generate mockgen -source=messaging.go -destination=mocks/mocks.go -package=mocks Publisher

import "context"

// Header names attached to every outbound message.
const (
	HeaderPartitionKey = "partitionKey"
	HeaderEventID      = "eventId"
	HeaderEventType    = "eventType"
)

// Message is a serialized event ready for a transport. Key is the partition
// key: messages sharing a key on one channel keep their submission order.
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

// Publisher hands messages to a transport. Publish returns once the message
// is handed off; delivery confirmation is not observable by the caller.
type Publisher interface {
	Publish(ctx context.Context, channel string, msg Message) error
	Close() error
}
