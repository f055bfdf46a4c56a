package decision

import (
	"context"
	"fmt"

	"github.com/onex-learning/patternd/internal/patternstore"
)

// ReplayResult is the outcome of replaying one persisted decision: the
// recomputed winner, whether it agrees with what was actually chosen, and
// the full mismatch scan run against the same record.
type ReplayResult struct {
	DecisionID      string           `json:"decision_id"`
	ChosenID        string           `json:"chosen_id"`
	RecomputedID    string           `json:"recomputed_id"`
	Consistent      bool             `json:"consistent"`
	MismatchSignals []MismatchSignal `json:"mismatch_signals,omitempty"`
}

// LoadAndReplay fetches a decision record by id and runs both Replay and
// DetectMismatches against it - the read path for the decision audit
// endpoint, which recomputes rather than trusting the persisted chosen_id.
func LoadAndReplay(ctx context.Context, store *patternstore.Store, decisionID string) (ReplayResult, error) {
	rec, err := store.FetchDecisionRecord(ctx, decisionID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("decision: load for replay: %w", err)
	}

	record, err := FromDecisionRecord(rec)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("decision: decode for replay: %w", err)
	}

	recomputedID, consistent := Replay(record)

	return ReplayResult{
		DecisionID:      rec.DecisionID,
		ChosenID:        record.ChosenID,
		RecomputedID:    recomputedID,
		Consistent:      consistent,
		MismatchSignals: DetectMismatches(record),
	}, nil
}
