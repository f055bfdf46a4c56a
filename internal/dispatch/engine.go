package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/onex-learning/patternd/internal/envelope"
	"github.com/onex-learning/patternd/internal/storage"
)

// Subscription binds one topic to the handler that processes it and the
// dead-letter topic non-retryable failures are routed to.
type Subscription struct {
	Topic      envelope.Topic
	Handler    Handler
	DeadLetter envelope.Topic
}

// Engine consumes kafka.Reader(s), one per subscribed topic, decodes each
// message's identity (topic, event_id) for the idempotency gate, dispatches
// to the resolved Handler inside one transaction, and routes the result:
// ack on Applied/AlreadyApplied; on RetryableFailure, up to five more
// in-process attempts with backoff, after which the message is dead-lettered
// like a NonRetryableFailure; publish-to-DLQ-then-ack on NonRetryableFailure.
//
// Construction uses a conn-accepting constructor with functional options,
// and a logger field initialized to slog.Default() unless overridden.
type Engine struct {
	conn          *storage.Connection
	registry      *envelope.Registry
	subscriptions map[string]Subscription
	readers       map[string]*kafka.Reader
	writer        *kafka.Writer
	gate          *idempotencyGate
	backoff       *backoff
	logger        *slog.Logger
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithProcessedEventTTL overrides the default 24-hour idempotency TTL.
func WithProcessedEventTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.gate = newIdempotencyGate(e.conn, ttl)
	}
}

// NewEngine constructs an Engine bound to conn and registry. subs must be
// non-empty (ErrNoReaders); each subscription's topic must already be
// registered via registry.Build (ErrContractDrift otherwise - checked here
// at construction time so a deployment with a stale registry fails fast
// rather than silently dropping messages at runtime).
func NewEngine(conn *storage.Connection, registry *envelope.Registry, brokers []string, subs []Subscription, opts ...Option) (*Engine, error) {
	if len(subs) == 0 {
		return nil, ErrNoReaders
	}

	e := &Engine{
		conn:          conn,
		registry:      registry,
		subscriptions: make(map[string]Subscription, len(subs)),
		readers:       make(map[string]*kafka.Reader, len(subs)),
		writer:        &kafka.Writer{Addr: kafka.TCP(brokers...), Balancer: &kafka.Hash{}},
		gate:          newIdempotencyGate(conn, defaultProcessedEventTTL),
		backoff:       newBackoff(),
		logger:        slog.Default(),
	}

	for _, sub := range subs {
		if _, ok := registry.ResolveTopic(sub.Topic.String()); !ok {
			return nil, fmt.Errorf("%w: %s", ErrContractDrift, sub.Topic.String())
		}

		topicName := sub.Topic.String()
		e.subscriptions[topicName] = sub
		e.readers[topicName] = kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topicName,
			GroupID: "patternd-dispatch",
		})
	}

	for _, o := range opts {
		o(e)
	}

	return e, nil
}

// Close releases every reader and the shared writer.
func (e *Engine) Close() error {
	var firstErr error

	for _, r := range e.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := e.writer.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// Run starts one bounded worker pool per subscription and blocks until ctx
// is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	done := make(chan struct{}, len(e.subscriptions))

	for topicName, reader := range e.readers {
		go func(topicName string, reader *kafka.Reader) {
			defer func() { done <- struct{}{} }()

			e.consume(ctx, topicName, reader)
		}(topicName, reader)
	}

	<-ctx.Done()

	for range e.subscriptions {
		<-done
	}

	return ctx.Err()
}

func (e *Engine) consume(ctx context.Context, topicName string, reader *kafka.Reader) {
	msgs := make(chan kafka.Message)

	go func() {
		defer close(msgs)

		for {
			m, err := reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}

				e.logger.Error("dispatch: fetch failed", "topic", topicName, "error", err)

				return
			}

			select {
			case msgs <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	pool := newWorkerPool(func(ctx context.Context, m kafka.Message) {
		e.handle(ctx, topicName, reader, m)
	})
	pool.run(ctx, msgs)
}

func (e *Engine) handle(ctx context.Context, topicName string, reader *kafka.Reader, msg kafka.Message) {
	sub, ok := e.subscriptions[topicName]
	if !ok {
		e.logger.Error("dispatch: no subscription for topic", "topic", topicName)
		return
	}

	eventID := headerValue(msg, envelope.HeaderEventID)
	correlationID := headerValue(msg, envelope.HeaderCorrelationID)

	var (
		result   HandlerResult
		outbound []Outbound
	)

	for attempt := 0; ; attempt++ {
		var err error
		result, outbound, err = e.dispatchOnce(ctx, sub, topicName, eventID, msg)

		if err == nil && result != RetryableFailure {
			break
		}

		if err != nil {
			e.logger.Error("dispatch: handler error", "topic", topicName, "event_id", eventID, "error", err)
		}

		if waitErr := e.backoff.wait(ctx, attempt); waitErr != nil {
			e.logger.Warn("dispatch: retry abandoned, context cancelled", "topic", topicName, "event_id", eventID)
			return
		}

		const maxInlineRetries = 5
		if attempt >= maxInlineRetries {
			result = NonRetryableFailure

			break
		}
	}

	switch result {
	case Applied, AlreadyApplied, PartialSuccess:
		if err := reader.CommitMessages(ctx, msg); err != nil {
			e.logger.Error("dispatch: commit failed", "topic", topicName, "event_id", eventID, "error", err)
		}

		e.publish(ctx, correlationID, outbound)
	case NonRetryableFailure:
		e.deadLetter(ctx, sub, msg, correlationID)

		if err := reader.CommitMessages(ctx, msg); err != nil {
			e.logger.Error("dispatch: commit failed after dead-letter", "topic", topicName, "event_id", eventID, "error", err)
		}
	case RetryableFailure:
		e.logger.Warn("dispatch: retries exhausted without resolution", "topic", topicName, "event_id", eventID)
	}
}

func (e *Engine) dispatchOnce(ctx context.Context, sub Subscription, topicName, eventID string, msg kafka.Message) (HandlerResult, []Outbound, error) {
	tx, err := e.conn.BeginTx(ctx, nil)
	if err != nil {
		return RetryableFailure, nil, fmt.Errorf("dispatch: failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	alreadyProcessed, err := e.gate.checkAndRecord(ctx, tx, topicName, eventID)
	if err != nil {
		return RetryableFailure, nil, err
	}

	if alreadyProcessed {
		return AlreadyApplied, nil, nil
	}

	result, outbound, err := sub.Handler.Handle(ctx, tx, msg)
	if err != nil {
		return result, nil, err
	}

	if result == Applied || result == PartialSuccess {
		if err := tx.Commit(); err != nil {
			return RetryableFailure, nil, fmt.Errorf("dispatch: commit failed: %w", err)
		}
	}

	return result, outbound, nil
}

// publish copies correlationID onto every outbound event before publishing, so
// no Handler can forget correlation propagation (testable property: every
// published event's correlation_id traces back to the inbound event that
// caused it).
func (e *Engine) publish(ctx context.Context, correlationID string, outbound []Outbound) {
	for _, ob := range outbound {
		env, err := envelope.Derive(ob.Topic, ob.EventType, correlationID, time.Now(), ob.SchemaVersion, ob.Payload)
		if err != nil {
			e.logger.Error("dispatch: failed to derive outbound envelope", "topic", ob.Topic.String(), "error", err)
			continue
		}

		msg, err := envelope.ToMessage(env, ob.PartitionKey)
		if err != nil {
			e.logger.Error("dispatch: failed to encode outbound message", "topic", ob.Topic.String(), "error", err)
			continue
		}

		if err := e.writer.WriteMessages(ctx, msg); err != nil {
			e.logger.Error("dispatch: publish failed", "topic", ob.Topic.String(), "error", err)
		}
	}
}

func (e *Engine) deadLetter(ctx context.Context, sub Subscription, msg kafka.Message, correlationID string) {
	dlq := kafka.Message{
		Topic:   sub.DeadLetter.String(),
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: msg.Headers,
	}

	if err := e.writer.WriteMessages(ctx, dlq); err != nil {
		e.logger.Error("dispatch: dead-letter publish failed", "topic", sub.DeadLetter.String(), "correlation_id", correlationID, "error", err)
	}
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}

	return ""
}
