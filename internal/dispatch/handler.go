package dispatch

import (
	"context"
	"database/sql"

	"github.com/segmentio/kafka-go"

	"github.com/onex-learning/patternd/internal/envelope"
)

// Outbound is an envelope a Handler wants published once its transaction
// commits, paired with the partition key the Engine should use. Engine.publish
// stamps CorrelationID from the inbound envelope onto every Outbound before
// publishing, so a handler can never forget to propagate it.
type Outbound struct {
	Topic         envelope.Topic
	EventType     string
	SchemaVersion int
	Payload       any
	PartitionKey  []byte
}

// Handler decodes and processes one raw Kafka message inside a single
// database transaction (the same transaction the idempotency gate's record
// write happens in) and returns a HandlerResult plus any events to publish.
//
// Handlers are resolved from the registry by topic name; a Handler is
// expected to decode msg itself (via envelope.FromMessage[T] for its own
// payload type), since Go generics cannot erase the payload type across a
// single non-generic interface method.
type Handler interface {
	// Handle processes msg within tx. ctx carries the per-message deadline.
	Handle(ctx context.Context, tx *sql.Tx, msg kafka.Message) (HandlerResult, []Outbound, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, tx *sql.Tx, msg kafka.Message) (HandlerResult, []Outbound, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, tx *sql.Tx, msg kafka.Message) (HandlerResult, []Outbound, error) {
	return f(ctx, tx, msg)
}
