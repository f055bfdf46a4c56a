package node

import (
	"context"

	"github.com/onex-learning/patternd/internal/dispatch"
	"github.com/onex-learning/patternd/internal/envelope"
	"github.com/onex-learning/patternd/internal/patternstore"
)

// GateInput carries the already-computed transition decision an upstream
// Compute step produced; the effect node's only job is to persist it.
type GateInput struct {
	PatternID      string                       `json:"pattern_id"`
	FromStatus     patternstore.LifecycleStatus `json:"from_status"`
	ToStatus       patternstore.LifecycleStatus `json:"to_status"`
	Tier           patternstore.EvidenceTier    `json:"evidence_tier"`
	Snapshot       patternstore.GateSnapshot    `json:"snapshot"`
	IdempotencyKey string                       `json:"idempotency_key"`
}

// lifecycleTransitioned is the wire payload of
// evt.pattern-lifecycle-transitioned.v1, published alongside the
// status-specific evt.pattern-promoted.v1/evt.pattern-demoted.v1 events so a
// consumer only interested in "something changed" never has to subscribe to
// every specific transition topic.
type lifecycleTransitioned struct {
	PatternID  string                       `json:"pattern_id"`
	FromStatus patternstore.LifecycleStatus `json:"from_status"`
	ToStatus   patternstore.LifecycleStatus `json:"to_status"`
	Tier       patternstore.EvidenceTier    `json:"evidence_tier"`
}

// transitionedOutbound builds the generic lifecycle-transitioned event every
// applied transition publishes, regardless of direction.
func transitionedOutbound(env, patternID string, from, to patternstore.LifecycleStatus, tier patternstore.EvidenceTier) dispatch.Outbound {
	topic := envelope.NewTopic(env, envelope.Event, "pattern-lifecycle-transitioned", "transitioned", 1)

	return dispatch.Outbound{
		Topic:         topic,
		EventType:     "pattern-lifecycle-transitioned",
		SchemaVersion: 1,
		Payload:       lifecycleTransitioned{PatternID: patternID, FromStatus: from, ToStatus: to, Tier: tier},
		PartitionKey:  topic.PartitionKey("", patternID),
	}
}

// PatternLifecycleEffect wraps PatternStore.ApplyTransition. It is called
// only after a gate in internal/lifecycle has already decided the
// transition is warranted; this node never evaluates gate thresholds
// itself, it only persists a decision already made.
var PatternLifecycleEffect EffectFunc[GateInput] = func(ctx context.Context, in GateInput, deps EffectDeps) (dispatch.HandlerResult, []dispatch.Outbound, error) {
	result, err := deps.Store.ApplyTransition(ctx, in.PatternID, in.FromStatus, in.ToStatus, in.Tier, in.Snapshot, in.IdempotencyKey)
	if err != nil {
		return dispatch.RetryableFailure, nil, err
	}

	switch result {
	case patternstore.TransitionApplied:
		return dispatch.Applied, []dispatch.Outbound{transitionedOutbound(deps.Env, in.PatternID, in.FromStatus, in.ToStatus, in.Tier)}, nil
	case patternstore.TransitionAlreadyApplied:
		return dispatch.Applied, nil, nil
	case patternstore.TransitionStaleStatus, patternstore.TransitionGateFailed:
		return dispatch.NonRetryableFailure, nil, nil
	default:
		return dispatch.NonRetryableFailure, nil, nil
	}
}
