package node

import (
	"context"
	"time"

	"github.com/onex-learning/patternd/internal/dispatch"
	"github.com/onex-learning/patternd/internal/envelope"
	"github.com/onex-learning/patternd/internal/lifecycle"
	"github.com/onex-learning/patternd/internal/patternstore"
)

// patternPromoted is the wire payload of evt.pattern-promoted.v1.
type patternPromoted struct {
	PatternID  string                       `json:"pattern_id"`
	FromStatus patternstore.LifecycleStatus `json:"from_status"`
	ToStatus   patternstore.LifecycleStatus `json:"to_status"`
}

// PromotionInput carries the pattern and evidence a promotion decision is
// evaluated against. Now is supplied by the caller rather than read from
// time.Now() here, keeping the gate evaluation deterministic and testable.
type PromotionInput struct {
	PatternID      string
	FromStatus     patternstore.LifecycleStatus
	Tier           patternstore.EvidenceTier
	Metrics        patternstore.RollingMetrics
	Domains        []patternstore.DomainCandidate
	Now            time.Time
	IdempotencyKey string
}

// PatternPromotionEffect evaluates the applicable promotion gate (computed
// purely in internal/lifecycle) and, if it holds, persists the transition.
// If the gate does not hold this is not a failure - the event is simply a
// no-op observation, acked without a state change.
var PatternPromotionEffect EffectFunc[PromotionInput] = func(ctx context.Context, in PromotionInput, deps EffectDeps) (dispatch.HandlerResult, []dispatch.Outbound, error) {
	var (
		ok       bool
		snap     patternstore.GateSnapshot
		toStatus patternstore.LifecycleStatus
	)

	thresholds := lifecycle.LoadThresholds()

	switch in.FromStatus {
	case patternstore.StatusCandidate:
		ok, snap = lifecycle.CandidateToProvisionalGate(in.Tier, in.Metrics, in.Now)
		toStatus = patternstore.StatusProvisional
	case patternstore.StatusProvisional:
		alert := lifecycle.CheckAntiGaming(in.Metrics, in.Domains, thresholds)
		ok, snap = lifecycle.ProvisionalToValidatedGate(in.Tier, in.Metrics, thresholds, alert, in.Now)
		toStatus = patternstore.StatusValidated
	default:
		return dispatch.Applied, nil, nil
	}

	if !ok {
		return dispatch.Applied, nil, nil
	}

	result, err := deps.Store.ApplyTransition(ctx, in.PatternID, in.FromStatus, toStatus, snap.EvidenceTier, snap, in.IdempotencyKey)
	if err != nil {
		return dispatch.RetryableFailure, nil, err
	}

	if result == patternstore.TransitionStaleStatus || result == patternstore.TransitionGateFailed {
		return dispatch.NonRetryableFailure, nil, nil
	}

	if result == patternstore.TransitionAlreadyApplied {
		return dispatch.Applied, nil, nil
	}

	promotedTopic := envelope.NewTopic(deps.Env, envelope.Event, "pattern-promoted", "promoted", 1)

	outbound := []dispatch.Outbound{
		{
			Topic:         promotedTopic,
			EventType:     "pattern-promoted",
			SchemaVersion: 1,
			Payload:       patternPromoted{PatternID: in.PatternID, FromStatus: in.FromStatus, ToStatus: toStatus},
			PartitionKey:  promotedTopic.PartitionKey("", in.PatternID),
		},
		transitionedOutbound(deps.Env, in.PatternID, in.FromStatus, toStatus, snap.EvidenceTier),
	}

	return dispatch.Applied, outbound, nil
}
