// Package dispatch wires subscribed Kafka topics to the handlers declared in
// the envelope registry: decode, idempotency gate, bounded worker pool,
// handler invocation, and result-based ack/nack/DLQ routing.
package dispatch

import "errors"

// Sentinel errors for dispatch engine construction and routing.
var (
	// ErrNoReaders is returned when an Engine is built with no subscriptions.
	ErrNoReaders = errors.New("dispatch: at least one subscription is required")

	// ErrContractDrift is returned by NewEngine when a subscription's topic
	// is not in the registry. It is fatal at startup; no per-message path
	// returns it.
	ErrContractDrift = errors.New("dispatch: topic has no resolvable handler")

	// ErrDecodeFailed names a message whose envelope cannot be decoded or
	// fails Envelope.Validate. The handlers in package wiring report decode
	// failures as NonRetryableFailure with their own wrapped errors and do
	// not return this sentinel.
	ErrDecodeFailed = errors.New("dispatch: failed to decode envelope")

	// ErrIdempotencyCheckFailed is returned when the processed_events gate
	// query itself fails (not when the message turns out to be a duplicate).
	ErrIdempotencyCheckFailed = errors.New("dispatch: idempotency check failed")
)

// HandlerResult is the closed outcome set a Handler may return. The engine's
// ack/nack/DLQ routing depends entirely on which member is returned - there
// is no escape hatch for a handler to ack/nack the Kafka message directly.
type HandlerResult int

const (
	// Applied means the handler's mutation committed. Ack.
	Applied HandlerResult = iota

	// AlreadyApplied means the idempotency gate found this (topic, event_id)
	// already processed. Ack without invoking the handler.
	AlreadyApplied

	// RetryableFailure means the handler failed transiently (connection
	// reset, serialization failure). Retried in process with backoff; once
	// the retry limit is reached the message is dead-lettered.
	RetryableFailure

	// NonRetryableFailure means the handler failed in a way redelivery
	// cannot fix (malformed payload, contract drift). Publish to the
	// topic's dead-letter topic and ack the original message.
	NonRetryableFailure

	// PartialSuccess means a handler that fans out across several
	// independent items (e.g. one attribution per injected pattern) had at
	// least one succeed and at least one fail. The message is acked - the
	// successful items already committed and redelivery would only
	// duplicate them - and the failed items are surfaced to the caller via
	// whatever per-item error map the handler returns alongside the result.
	PartialSuccess
)

// String renders the result for logging.
func (r HandlerResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case AlreadyApplied:
		return "already_applied"
	case RetryableFailure:
		return "retryable_failure"
	case NonRetryableFailure:
		return "non_retryable_failure"
	case PartialSuccess:
		return "partial_success"
	default:
		return "unknown"
	}
}
