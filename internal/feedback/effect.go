package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/onex-learning/patternd/internal/dispatch"
	"github.com/onex-learning/patternd/internal/dispatch/node"
	"github.com/onex-learning/patternd/internal/envelope"
	"github.com/onex-learning/patternd/internal/patternstore"
)

// Input is the feedback effect node's entry point: a terminal SessionOutcome
// observed from an external agent, still carrying its raw evidence payload.
type Input struct {
	SessionID       string               `json:"session_id"`
	Outcome         patternstore.Outcome `json:"outcome"`
	CorrelationID   string               `json:"correlation_id"`
	RunID           string               `json:"run_id"`
	EvidenceSignals json.RawMessage      `json:"evidence_signals"`
}

// patternMetricsUpdated is the wire payload of evt.pattern-metrics-updated.v1.
type patternMetricsUpdated struct {
	SessionID string                 `json:"session_id"`
	Patterns  []string               `json:"pattern_ids"`
	Heuristic patternstore.Heuristic `json:"heuristic"`
}

// PatternFeedbackEffect implements spec.md §4.6 steps 1-6: fetch injections,
// short-circuit on no-injections or already-recorded, compute the evidence
// tier, split credit with the configured heuristic, and persist one
// transaction per pattern, so one pattern's failure never rolls back another
// pattern's already-committed credit.
var PatternFeedbackEffect node.EffectFunc[Input] = func(ctx context.Context, in Input, deps node.EffectDeps) (dispatch.HandlerResult, []dispatch.Outbound, error) {
	injections, err := deps.Store.FetchInjections(ctx, in.SessionID)
	if err != nil {
		return dispatch.RetryableFailure, nil, fmt.Errorf("feedback: fetch injections: %w", err)
	}

	if len(injections) == 0 {
		return dispatch.NonRetryableFailure, nil, fmt.Errorf("feedback: no injections found for session %s", in.SessionID)
	}

	signals, err := DecodeEvidenceSignals(in.EvidenceSignals)
	if err != nil {
		return dispatch.NonRetryableFailure, nil, fmt.Errorf("feedback: decode evidence signals: %w", err)
	}

	tier := ComputeEvidenceTier(signals)

	inserted, err := deps.Store.RecordSessionOutcome(ctx, patternstore.SessionOutcome{
		SessionID:       in.SessionID,
		Outcome:         in.Outcome,
		CorrelationID:   in.CorrelationID,
		RunID:           in.RunID,
		EvidenceSignals: in.EvidenceSignals,
	})
	if err != nil {
		return dispatch.RetryableFailure, nil, fmt.Errorf("feedback: record session outcome: %w", err)
	}

	if !inserted {
		return dispatch.AlreadyApplied, nil, nil
	}

	heuristic := SelectHeuristic()
	weights := heuristic.Split(injections)

	failures := make(map[string]error)
	applied := make([]string, 0, len(injections))

	for i, inj := range injections {
		outcome := patternstore.RollingOutcome{Outcome: in.Outcome, Weight: weights[i]}

		if err := deps.Store.ApplyAttribution(ctx, in.SessionID, inj.PatternID, outcome, tier, heuristic.Name(), heuristic.Confidence()); err != nil {
			failures[inj.PatternID] = err
			continue
		}

		applied = append(applied, inj.PatternID)
	}

	topic := envelope.NewTopic(deps.Env, envelope.Event, "pattern-metrics-updated", "updated", 1)

	outbound := []dispatch.Outbound{{
		Topic:         topic,
		EventType:     "pattern-metrics-updated",
		SchemaVersion: 1,
		Payload: patternMetricsUpdated{
			SessionID: in.SessionID,
			Patterns:  applied,
			Heuristic: heuristic.Name(),
		},
		PartitionKey: topic.PartitionKey("", in.SessionID),
	}}

	switch {
	case len(failures) == 0:
		return dispatch.Applied, outbound, nil
	case len(applied) == 0:
		return dispatch.RetryableFailure, nil, joinAttributionErrors(failures)
	default:
		return dispatch.PartialSuccess, outbound, joinAttributionErrors(failures)
	}
}

func joinAttributionErrors(failures map[string]error) error {
	errs := make([]error, 0, len(failures))
	for patternID, err := range failures {
		errs = append(errs, fmt.Errorf("pattern %s: %w", patternID, err))
	}

	return errors.Join(errs...)
}
