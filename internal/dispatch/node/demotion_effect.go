package node

import (
	"context"
	"time"

	"github.com/onex-learning/patternd/internal/dispatch"
	"github.com/onex-learning/patternd/internal/envelope"
	"github.com/onex-learning/patternd/internal/lifecycle"
	"github.com/onex-learning/patternd/internal/patternstore"
)

// patternDemoted is the wire payload of evt.pattern-demoted.v1. Blacklisting
// is a demotion too (any status -> BLACKLISTED), so this event also covers
// the anti-gaming path.
type patternDemoted struct {
	PatternID  string                       `json:"pattern_id"`
	FromStatus patternstore.LifecycleStatus `json:"from_status"`
	ToStatus   patternstore.LifecycleStatus `json:"to_status"`
}

// DemotionInput mirrors PromotionInput for the downgrade direction:
// VALIDATED -> DEPRECATED, or any non-terminal status -> BLACKLISTED when
// Blacklist is set (a BLOCKER-severity anti-gaming alert forces this path
// regardless of which status the pattern currently holds).
type DemotionInput struct {
	PatternID      string
	FromStatus     patternstore.LifecycleStatus
	Tier           patternstore.EvidenceTier
	Metrics        patternstore.RollingMetrics
	Now            time.Time
	Blacklist      bool
	IdempotencyKey string
}

// PatternDemotionEffect evaluates the demotion gate and, if it holds (or
// Blacklist forces an immediate downgrade), persists the transition.
var PatternDemotionEffect EffectFunc[DemotionInput] = func(ctx context.Context, in DemotionInput, deps EffectDeps) (dispatch.HandlerResult, []dispatch.Outbound, error) {
	if in.Blacklist {
		snap := patternstore.GateSnapshot{
			EvidenceTier:   in.Tier,
			RollingMetrics: in.Metrics,
			SuccessRate:    in.Metrics.SuccessRate(),
			EvaluatedAt:    in.Now,
		}

		return applyDemotion(ctx, deps, in, patternstore.StatusBlacklisted, snap)
	}

	if in.FromStatus != patternstore.StatusValidated {
		return dispatch.Applied, nil, nil
	}

	thresholds := lifecycle.LoadThresholds()

	ok, snap := lifecycle.ValidatedToDeprecatedGate(in.Tier, in.Metrics, thresholds, in.Now)
	if !ok {
		return dispatch.Applied, nil, nil
	}

	return applyDemotion(ctx, deps, in, patternstore.StatusDeprecated, snap)
}

func applyDemotion(ctx context.Context, deps EffectDeps, in DemotionInput, toStatus patternstore.LifecycleStatus, snap patternstore.GateSnapshot) (dispatch.HandlerResult, []dispatch.Outbound, error) {
	result, err := deps.Store.ApplyTransition(ctx, in.PatternID, in.FromStatus, toStatus, in.Tier, snap, in.IdempotencyKey)
	if err != nil {
		return dispatch.RetryableFailure, nil, err
	}

	if result == patternstore.TransitionStaleStatus || result == patternstore.TransitionGateFailed {
		return dispatch.NonRetryableFailure, nil, nil
	}

	if result == patternstore.TransitionAlreadyApplied {
		return dispatch.Applied, nil, nil
	}

	demotedTopic := envelope.NewTopic(deps.Env, envelope.Event, "pattern-demoted", "demoted", 1)

	outbound := []dispatch.Outbound{
		{
			Topic:         demotedTopic,
			EventType:     "pattern-demoted",
			SchemaVersion: 1,
			Payload:       patternDemoted{PatternID: in.PatternID, FromStatus: in.FromStatus, ToStatus: toStatus},
			PartitionKey:  demotedTopic.PartitionKey("", in.PatternID),
		},
		transitionedOutbound(deps.Env, in.PatternID, in.FromStatus, toStatus, in.Tier),
	}

	return dispatch.Applied, outbound, nil
}
