// Package envelope provides the universal wire record for events crossing a
// component boundary, the canonical topic naming scheme, and the immutable
// topic/contract registry built once at startup.
package envelope

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors for envelope construction and registry operations.
var (
	// ErrEmittedAtRequired is returned when a producer fails to supply EmittedAt.
	// Envelopes are never stamped with wall-clock time at construction so that
	// tests and replays remain deterministic.
	ErrEmittedAtRequired = errors.New("envelope: emitted_at is required and must not be zero")

	// ErrCorrelationIDRequired is returned when CorrelationID is empty.
	ErrCorrelationIDRequired = errors.New("envelope: correlation_id is required")

	// ErrEventIDRequired is returned when EventID is empty.
	ErrEventIDRequired = errors.New("envelope: event_id is required")
)

// Envelope wraps a typed payload with the identity, partitioning, and
// correlation-lineage fields every event crossing a component boundary
// carries.
//
// EmittedAt must be supplied by the producer; New returns ErrEmittedAtRequired
// rather than defaulting it to time.Now(), keeping replays deterministic.
type Envelope[T any] struct {
	EventID       string
	Topic         Topic
	EventType     string
	CorrelationID string
	EmittedAt     time.Time
	SchemaVersion int
	Payload       T
}

// New constructs an Envelope, validating the fields that must never be
// defaulted. CorrelationID is always generated fresh (this establishes a
// new causal chain); downstream envelopes must instead use Derive to
// propagate it unchanged.
func New[T any](topic Topic, eventType string, emittedAt time.Time, schemaVersion int, payload T) (Envelope[T], error) {
	if emittedAt.IsZero() {
		return Envelope[T]{}, ErrEmittedAtRequired
	}

	return Envelope[T]{
		EventID:       uuid.NewString(),
		Topic:         topic,
		EventType:     eventType,
		CorrelationID: uuid.NewString(),
		EmittedAt:     emittedAt,
		SchemaVersion: schemaVersion,
		Payload:       payload,
	}, nil
}

// Derive constructs an Envelope that inherits correlationID unchanged from an
// inbound envelope, establishing a causal chain (spec testable property:
// correlation closure). emittedAt must still be producer-supplied.
func Derive[T any](
	topic Topic,
	eventType string,
	correlationID string,
	emittedAt time.Time,
	schemaVersion int,
	payload T,
) (Envelope[T], error) {
	if emittedAt.IsZero() {
		return Envelope[T]{}, ErrEmittedAtRequired
	}

	if correlationID == "" {
		return Envelope[T]{}, ErrCorrelationIDRequired
	}

	return Envelope[T]{
		EventID:       uuid.NewString(),
		Topic:         topic,
		EventType:     eventType,
		CorrelationID: correlationID,
		EmittedAt:     emittedAt,
		SchemaVersion: schemaVersion,
		Payload:       payload,
	}, nil
}

// Validate checks the structural invariants of an already-constructed
// envelope, used by the dispatch engine after decoding an inbound message
// (a malformed envelope on the wire is returned as an error, not a panic).
func (e Envelope[T]) Validate() error {
	if e.EventID == "" {
		return ErrEventIDRequired
	}

	if e.CorrelationID == "" {
		return ErrCorrelationIDRequired
	}

	if e.EmittedAt.IsZero() {
		return ErrEmittedAtRequired
	}

	return nil
}
