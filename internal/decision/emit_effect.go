package decision

import (
	"context"
	"fmt"

	"github.com/onex-learning/patternd/internal/dispatch"
	"github.com/onex-learning/patternd/internal/dispatch/node"
	"github.com/onex-learning/patternd/internal/envelope"
)

// EmitInput is the node_decision_emit_effect entry point: the scoring result
// of one model/route/pattern selection, not yet assigned a decision_id.
type EmitInput struct {
	DecisionType   string
	Candidates     []Candidate
	ChosenID       string
	TieBreaker     TieBreaker
	AgentRationale string
	Provenance     []ProvenanceEntry
}

// recordedPayload is the wire payload of cmd.decision-recorded.v1 - the full
// record, so the mismatch detector consumer never needs a second read
// against decision_records to evaluate it.
type recordedPayload struct {
	DecisionID     string            `json:"decision_id"`
	DecisionType   string            `json:"decision_type"`
	Candidates     []Candidate       `json:"candidates"`
	ChosenID       string            `json:"chosen_id"`
	TieBreaker     TieBreaker        `json:"tie_breaker"`
	AgentRationale string            `json:"agent_rationale"`
	Provenance     []ProvenanceEntry `json:"provenance"`
}

// DecisionEmitEffect persists in.{...} to decision_records and publishes the
// full record to cmd.decision-recorded.v1 for the mismatch detector -
// grounded on original_source's decision_store module, which consumes this
// same event for provenance-audit persistence (spec.md §4.7).
var DecisionEmitEffect node.EffectFunc[EmitInput] = func(ctx context.Context, in EmitInput, deps node.EffectDeps) (dispatch.HandlerResult, []dispatch.Outbound, error) {
	record, err := toDecisionRecord(Record{
		DecisionType:   in.DecisionType,
		Candidates:     in.Candidates,
		ChosenID:       in.ChosenID,
		TieBreaker:     in.TieBreaker,
		AgentRationale: in.AgentRationale,
		Provenance:     in.Provenance,
	})
	if err != nil {
		return dispatch.NonRetryableFailure, nil, err
	}

	decisionID, err := deps.Store.InsertDecisionRecord(ctx, record)
	if err != nil {
		return dispatch.RetryableFailure, nil, fmt.Errorf("decision: insert record: %w", err)
	}

	topic := envelope.NewTopic(deps.Env, envelope.Command, "decision-recorded", "record", 1)

	outbound := dispatch.Outbound{
		Topic:         topic,
		EventType:     "decision-recorded",
		SchemaVersion: 1,
		Payload: recordedPayload{
			DecisionID:     decisionID,
			DecisionType:   in.DecisionType,
			Candidates:     in.Candidates,
			ChosenID:       in.ChosenID,
			TieBreaker:     in.TieBreaker,
			AgentRationale: in.AgentRationale,
			Provenance:     in.Provenance,
		},
		PartitionKey: topic.PartitionKey("", decisionID),
	}

	return dispatch.Applied, []dispatch.Outbound{outbound}, nil
}
