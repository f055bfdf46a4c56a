package decision

import (
	"context"
	"fmt"

	"github.com/onex-learning/patternd/internal/dispatch"
	"github.com/onex-learning/patternd/internal/dispatch/node"
	"github.com/onex-learning/patternd/internal/envelope"
	"github.com/onex-learning/patternd/internal/patternstore"
)

// MismatchInput is the consumer entry point for cmd.decision-recorded.v1 -
// the full record as DecisionEmitEffect published it, so this node never
// reads decision_records back to evaluate a record it just saw go by.
type MismatchInput struct {
	DecisionID     string            `json:"decision_id"`
	DecisionType   string            `json:"decision_type"`
	Candidates     []Candidate       `json:"candidates"`
	ChosenID       string            `json:"chosen_id"`
	TieBreaker     TieBreaker        `json:"tie_breaker"`
	AgentRationale string            `json:"agent_rationale"`
	Provenance     []ProvenanceEntry `json:"provenance"`
}

// mismatchDetected is the wire payload of evt.decision-mismatch-detected.v1.
type mismatchDetected struct {
	DecisionID string           `json:"decision_id"`
	ChosenID   string           `json:"chosen_id"`
	Signals    []MismatchSignal `json:"signals"`
}

// MismatchDetectorEffect implements spec.md §4.7's mismatch detector: it
// recomputes consistency from provenance alone and flags the record. A
// BLOCKER signal additionally blacklists the chosen pattern via the same
// ApplyTransition the lifecycle effect node uses for every other promotion
// and demotion, so a contradicted rationale removes the pattern from
// circulation without a human in the loop.
var MismatchDetectorEffect node.EffectFunc[MismatchInput] = func(ctx context.Context, in MismatchInput, deps node.EffectDeps) (dispatch.HandlerResult, []dispatch.Outbound, error) {
	record := Record{
		DecisionID:     in.DecisionID,
		DecisionType:   in.DecisionType,
		Candidates:     in.Candidates,
		ChosenID:       in.ChosenID,
		TieBreaker:     in.TieBreaker,
		AgentRationale: in.AgentRationale,
		Provenance:     in.Provenance,
	}

	signals := DetectMismatches(record)

	if len(signals) == 0 {
		return dispatch.Applied, nil, nil
	}

	var outbound []dispatch.Outbound

	topic := envelope.NewTopic(deps.Env, envelope.Event, "decision-mismatch-detected", "detected", 1)

	outbound = append(outbound, dispatch.Outbound{
		Topic:         topic,
		EventType:     "decision-mismatch-detected",
		SchemaVersion: 1,
		Payload: mismatchDetected{
			DecisionID: in.DecisionID,
			ChosenID:   in.ChosenID,
			Signals:    signals,
		},
		PartitionKey: topic.PartitionKey("", in.DecisionID),
	})

	if !anyBlocker(signals) {
		return dispatch.Applied, outbound, nil
	}

	if err := blacklistChosen(ctx, deps, in.DecisionID, in.ChosenID); err != nil {
		return dispatch.RetryableFailure, outbound, err
	}

	return dispatch.Applied, outbound, nil
}

func anyBlocker(signals []MismatchSignal) bool {
	for _, s := range signals {
		if s.Severity == SeverityBlocker {
			return true
		}
	}

	return false
}

// blacklistChosen looks up the chosen pattern's current lifecycle status and
// applies the BLACKLISTED transition, keyed on the decision that triggered
// it so a redelivered decision-recorded message never double-blacklists.
func blacklistChosen(ctx context.Context, deps node.EffectDeps, decisionID, patternID string) error {
	status, tier, err := deps.Store.CurrentLifecycleState(ctx, patternID)
	if err != nil {
		return fmt.Errorf("decision: lookup chosen pattern: %w", err)
	}

	if status == patternstore.StatusBlacklisted {
		return nil
	}

	snapshot := patternstore.GateSnapshot{EvidenceTier: tier}

	result, err := deps.Store.ApplyTransition(
		ctx, patternID, status, patternstore.StatusBlacklisted, tier, snapshot,
		"mismatch-blacklist:"+decisionID,
	)
	if err != nil {
		return fmt.Errorf("decision: blacklist chosen pattern: %w", err)
	}

	switch result {
	case patternstore.TransitionApplied, patternstore.TransitionAlreadyApplied:
		return nil
	default:
		return fmt.Errorf("decision: blacklist transition %s for pattern %s", result, patternID)
	}
}
