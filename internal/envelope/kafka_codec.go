package envelope

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kafka header keys used to carry envelope identity alongside the JSON
// payload, so the dispatch engine can decode (topic, event_id) for the
// idempotency gate without first unmarshaling the payload body.
const (
	HeaderEventID       = "event_id"
	HeaderCorrelationID = "correlation_id"
	HeaderEventType     = "event_type"
	HeaderSchemaVersion = "schema_version"
	HeaderEmittedAt     = "emitted_at"
)

// ToMessage encodes an Envelope into a kafka.Message. The partition key is
// supplied by the caller (typically Topic.PartitionKey) since only the
// caller knows the payload's signature_hash.
func ToMessage[T any](e Envelope[T], key []byte) (kafka.Message, error) {
	if err := e.Validate(); err != nil {
		return kafka.Message{}, err
	}

	body, err := json.Marshal(e.Payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("envelope: failed to marshal payload: %w", err)
	}

	return kafka.Message{
		Topic: e.Topic.String(),
		Key:   key,
		Value: body,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(e.EventID)},
			{Key: HeaderCorrelationID, Value: []byte(e.CorrelationID)},
			{Key: HeaderEventType, Value: []byte(e.EventType)},
			{Key: HeaderSchemaVersion, Value: []byte(strconv.Itoa(e.SchemaVersion))},
			{Key: HeaderEmittedAt, Value: []byte(e.EmittedAt.Format(time.RFC3339Nano))},
		},
	}, nil
}

// FromMessage decodes a kafka.Message back into a typed Envelope. A header
// that fails to parse (missing event_id, malformed emitted_at) is returned
// as an error, which the dispatch handlers route to the DLQ, rather than a
// panic.
func FromMessage[T any](msg kafka.Message) (Envelope[T], error) {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}

	topic, err := ParseTopic(msg.Topic)
	if err != nil {
		return Envelope[T]{}, err
	}

	schemaVersion, err := strconv.Atoi(headers[HeaderSchemaVersion])
	if err != nil {
		return Envelope[T]{}, fmt.Errorf("envelope: malformed schema_version header: %w", err)
	}

	emittedAt, err := time.Parse(time.RFC3339Nano, headers[HeaderEmittedAt])
	if err != nil {
		return Envelope[T]{}, fmt.Errorf("%w: malformed emitted_at header: %v", ErrEmittedAtRequired, err)
	}

	var payload T
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		return Envelope[T]{}, fmt.Errorf("envelope: failed to unmarshal payload: %w", err)
	}

	e := Envelope[T]{
		EventID:       headers[HeaderEventID],
		Topic:         topic,
		EventType:     headers[HeaderEventType],
		CorrelationID: headers[HeaderCorrelationID],
		EmittedAt:     emittedAt,
		SchemaVersion: schemaVersion,
		Payload:       payload,
	}

	if err := e.Validate(); err != nil {
		return Envelope[T]{}, err
	}

	return e, nil
}
