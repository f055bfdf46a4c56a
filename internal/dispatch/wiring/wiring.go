// Package wiring builds the envelope registry and dispatch subscriptions
// cmd/learner runs: one Subscription per command/event topic in the
// catalog, each bound to the node effect or orchestrator that handles it.
// This is the only place in the module that imports internal/dispatch/node,
// internal/decision, and internal/feedback together - every other package
// reaches at most one of them, keeping the node-kind purity boundaries
// meaningful.
package wiring

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/onex-learning/patternd/internal/aliasing"
	"github.com/onex-learning/patternd/internal/decision"
	"github.com/onex-learning/patternd/internal/dispatch"
	"github.com/onex-learning/patternd/internal/dispatch/node"
	"github.com/onex-learning/patternd/internal/envelope"
	"github.com/onex-learning/patternd/internal/feedback"
	"github.com/onex-learning/patternd/internal/patternstore"
)

// contractNames are the node names declared to the envelope registry -
// matching spec.md §6's topic catalog, one contract per subscribed topic.
const (
	contractPatternStore   = "pattern_assembler_orchestrator"
	contractSessionOutcome = "pattern_feedback_effect"
	contractDecisionRecord = "mismatch_detector_effect"
	contractMetricsUpdated = "pattern_lifecycle_reevaluator"
)

// BuildRegistry declares every dispatch contract this module consumes and
// freezes the topic/contract table. It must be called exactly once per
// process, before NewEngine, so a contract-drift startup failure (an
// unresolvable topic) surfaces before the first message is ever fetched.
func BuildRegistry(env string) (*envelope.Registry, error) {
	patternStoreTopic := envelope.NewTopic(env, envelope.Command, "pattern-store", "apply", 1)
	sessionOutcomeTopic := envelope.NewTopic(env, envelope.Command, "session-outcome", "record", 1)
	decisionRecordedTopic := envelope.NewTopic(env, envelope.Command, "decision-recorded", "record", 1)
	metricsUpdatedTopic := envelope.NewTopic(env, envelope.Event, "pattern-metrics-updated", "updated", 1)

	storedTopic := envelope.NewTopic(env, envelope.Event, "pattern-store", "stored", 1)
	promotedTopic := envelope.NewTopic(env, envelope.Event, "pattern-promoted", "promoted", 1)
	demotedTopic := envelope.NewTopic(env, envelope.Event, "pattern-demoted", "demoted", 1)
	transitionedTopic := envelope.NewTopic(env, envelope.Event, "pattern-lifecycle-transitioned", "transitioned", 1)
	mismatchTopic := envelope.NewTopic(env, envelope.Event, "decision-mismatch-detected", "detected", 1)

	return envelope.Build(
		envelope.Contract{
			Name:        contractPatternStore,
			Subscribes:  []envelope.Topic{patternStoreTopic},
			Publishes:   []envelope.Topic{storedTopic, transitionedTopic},
			InputType:   "node.ExecutionEvent",
			OutputTypes: []string{"evt.pattern-stored", "evt.pattern-lifecycle-transitioned"},
		},
		envelope.Contract{
			Name:        contractSessionOutcome,
			Subscribes:  []envelope.Topic{sessionOutcomeTopic},
			Publishes:   []envelope.Topic{metricsUpdatedTopic},
			InputType:   "feedback.Input",
			OutputTypes: []string{"evt.pattern-metrics-updated"},
		},
		envelope.Contract{
			Name:        contractDecisionRecord,
			Subscribes:  []envelope.Topic{decisionRecordedTopic},
			Publishes:   []envelope.Topic{mismatchTopic},
			InputType:   "decision.MismatchInput",
			OutputTypes: []string{"evt.decision-mismatch-detected"},
		},
		envelope.Contract{
			Name:        contractMetricsUpdated,
			Subscribes:  []envelope.Topic{metricsUpdatedTopic},
			Publishes:   []envelope.Topic{promotedTopic, demotedTopic, transitionedTopic},
			InputType:   "wiring.metricsUpdatedPayload",
			OutputTypes: []string{"evt.pattern-promoted", "evt.pattern-demoted", "evt.pattern-lifecycle-transitioned"},
		},
	)
}

// BuildSubscriptions binds every declared contract's topic to the Handler
// that processes it, against store and env. Each subscription's DeadLetter
// topic is domain-scoped, matching the catalog's {env}.onex.dlq.{domain}.v1
// shape.
func BuildSubscriptions(store *patternstore.Store, env string) []dispatch.Subscription {
	aliasConfig, _ := aliasing.LoadConfigFromEnv()
	domainResolver := aliasing.NewResolver(aliasConfig)

	return []dispatch.Subscription{
		{
			Topic:      envelope.NewTopic(env, envelope.Command, "pattern-store", "apply", 1),
			Handler:    patternStoreHandler(store, env, domainResolver),
			DeadLetter: envelope.NewTopic(env, envelope.DeadLetter, "pattern-store", "", 1),
		},
		{
			Topic:      envelope.NewTopic(env, envelope.Command, "session-outcome", "record", 1),
			Handler:    sessionOutcomeHandler(store, env),
			DeadLetter: envelope.NewTopic(env, envelope.DeadLetter, "session-outcome", "", 1),
		},
		{
			Topic:      envelope.NewTopic(env, envelope.Command, "decision-recorded", "record", 1),
			Handler:    decisionRecordedHandler(store, env),
			DeadLetter: envelope.NewTopic(env, envelope.DeadLetter, "decision-recorded", "", 1),
		},
		{
			Topic:      envelope.NewTopic(env, envelope.Event, "pattern-metrics-updated", "updated", 1),
			Handler:    metricsUpdatedHandler(store, env),
			DeadLetter: envelope.NewTopic(env, envelope.DeadLetter, "pattern-metrics-updated", "", 1),
		},
	}
}

// patternStoreHandler decodes an ExecutionEvent and runs it through the
// assembler orchestrator (match -> store -> gate).
func patternStoreHandler(store *patternstore.Store, env string, domainResolver *aliasing.Resolver) dispatch.Handler {
	delegates := node.Delegates{
		Match:          node.PatternMatchingCompute,
		Store:          node.PatternStorageEffect,
		Gate:           node.PatternLifecycleEffect,
		PatternDB:      store,
		Env:            env,
		DomainResolver: domainResolver,
	}

	return dispatch.HandlerFunc(func(ctx context.Context, _ *sql.Tx, msg kafka.Message) (dispatch.HandlerResult, []dispatch.Outbound, error) {
		decoded, err := envelope.FromMessage[node.ExecutionEvent](msg)
		if err != nil {
			return dispatch.NonRetryableFailure, nil, fmt.Errorf("wiring: decode execution event: %w", err)
		}

		in := decoded.Payload
		in.StoreInput.IdempotencyKey = decoded.EventID

		return node.PatternAssemblerOrchestrator(ctx, in, delegates)
	})
}

// sessionOutcomeHandler decodes a feedback.Input and runs the feedback
// effect node.
func sessionOutcomeHandler(store *patternstore.Store, env string) dispatch.Handler {
	return dispatch.HandlerFunc(func(ctx context.Context, _ *sql.Tx, msg kafka.Message) (dispatch.HandlerResult, []dispatch.Outbound, error) {
		decoded, err := envelope.FromMessage[feedback.Input](msg)
		if err != nil {
			return dispatch.NonRetryableFailure, nil, fmt.Errorf("wiring: decode session outcome: %w", err)
		}

		return feedback.PatternFeedbackEffect(ctx, decoded.Payload, node.EffectDeps{Store: store, Env: env})
	})
}

// decisionRecordedHandler decodes a decision.MismatchInput and runs the
// mismatch detector effect node.
func decisionRecordedHandler(store *patternstore.Store, env string) dispatch.Handler {
	return dispatch.HandlerFunc(func(ctx context.Context, _ *sql.Tx, msg kafka.Message) (dispatch.HandlerResult, []dispatch.Outbound, error) {
		decoded, err := envelope.FromMessage[decision.MismatchInput](msg)
		if err != nil {
			return dispatch.NonRetryableFailure, nil, fmt.Errorf("wiring: decode decision record: %w", err)
		}

		return decision.MismatchDetectorEffect(ctx, decoded.Payload, node.EffectDeps{Store: store, Env: env})
	})
}

// metricsUpdatedPayload mirrors feedback's unexported evt.pattern-metrics-updated.v1
// wire shape - only the pattern_ids this consumer needs are read back out.
type metricsUpdatedPayload struct {
	SessionID string   `json:"session_id"`
	Patterns  []string `json:"pattern_ids"`
}

// metricsUpdatedHandler re-evaluates every pattern named in a
// pattern-metrics-updated event against the promotion/demotion gates -
// rolling metrics only change as a side effect of feedback attribution, so
// this is the one place a lifecycle transition driven by evidence (as
// opposed to an explicit external command) gets triggered.
func metricsUpdatedHandler(store *patternstore.Store, env string) dispatch.Handler {
	return dispatch.HandlerFunc(func(ctx context.Context, _ *sql.Tx, msg kafka.Message) (dispatch.HandlerResult, []dispatch.Outbound, error) {
		decoded, err := envelope.FromMessage[metricsUpdatedPayload](msg)
		if err != nil {
			return dispatch.NonRetryableFailure, nil, fmt.Errorf("wiring: decode metrics update: %w", err)
		}

		var outbound []dispatch.Outbound

		now := time.Now()

		for _, patternID := range decoded.Payload.Patterns {
			result, ob, err := reevaluateLifecycle(ctx, store, env, patternID, now)
			outbound = append(outbound, ob...)

			if err != nil {
				return dispatch.RetryableFailure, outbound, fmt.Errorf("wiring: reevaluate pattern %s: %w", patternID, err)
			}

			if result != dispatch.Applied {
				return result, outbound, nil
			}
		}

		return dispatch.Applied, outbound, nil
	})
}

func reevaluateLifecycle(ctx context.Context, store *patternstore.Store, env, patternID string, now time.Time) (dispatch.HandlerResult, []dispatch.Outbound, error) {
	pattern, err := store.FetchPatternByID(ctx, patternID)
	if err != nil {
		return dispatch.RetryableFailure, nil, err
	}

	deps := node.EffectDeps{Store: store, Env: env}
	idempotencyKey := fmt.Sprintf("metrics-reevaluate:%s:%d", patternID, now.UnixNano())

	if pattern.LifecycleStatus == patternstore.StatusValidated {
		in := node.DemotionInput{
			PatternID:      patternID,
			FromStatus:     pattern.LifecycleStatus,
			Tier:           pattern.EvidenceTier,
			Metrics:        pattern.RollingMetrics,
			Now:            now,
			IdempotencyKey: idempotencyKey,
		}

		return node.PatternDemotionEffect(ctx, in, deps)
	}

	if pattern.LifecycleStatus == patternstore.StatusCandidate || pattern.LifecycleStatus == patternstore.StatusProvisional {
		in := node.PromotionInput{
			PatternID:      patternID,
			FromStatus:     pattern.LifecycleStatus,
			Tier:           pattern.EvidenceTier,
			Metrics:        pattern.RollingMetrics,
			Domains:        pattern.DomainCandidates,
			Now:            now,
			IdempotencyKey: idempotencyKey,
		}

		return node.PatternPromotionEffect(ctx, in, deps)
	}

	return dispatch.Applied, nil, nil
}
