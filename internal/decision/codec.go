package decision

import (
	"encoding/json"
	"fmt"

	"github.com/onex-learning/patternd/internal/patternstore"
)

// toDecisionRecord marshals a typed Record's candidate and provenance
// slices into the JSONB shape patternstore.DecisionRecord persists.
func toDecisionRecord(r Record) (patternstore.DecisionRecord, error) {
	candidatesJSON, err := json.Marshal(r.Candidates)
	if err != nil {
		return patternstore.DecisionRecord{}, fmt.Errorf("decision: marshal candidates: %w", err)
	}

	provenanceJSON, err := json.Marshal(r.Provenance)
	if err != nil {
		return patternstore.DecisionRecord{}, fmt.Errorf("decision: marshal provenance: %w", err)
	}

	return patternstore.DecisionRecord{
		DecisionID:     r.DecisionID,
		DecisionType:   r.DecisionType,
		Candidates:     candidatesJSON,
		ChosenID:       r.ChosenID,
		TieBreaker:     string(r.TieBreaker),
		AgentRationale: r.AgentRationale,
		Provenance:     provenanceJSON,
	}, nil
}

// FromDecisionRecord unmarshals a persisted patternstore.DecisionRecord back
// into the typed Record Replay and DetectMismatches operate on.
func FromDecisionRecord(rec patternstore.DecisionRecord) (Record, error) {
	var candidates []Candidate

	if len(rec.Candidates) > 0 {
		if err := json.Unmarshal(rec.Candidates, &candidates); err != nil {
			return Record{}, fmt.Errorf("decision: unmarshal candidates: %w", err)
		}
	}

	var provenance []ProvenanceEntry

	if len(rec.Provenance) > 0 {
		if err := json.Unmarshal(rec.Provenance, &provenance); err != nil {
			return Record{}, fmt.Errorf("decision: unmarshal provenance: %w", err)
		}
	}

	return Record{
		DecisionID:     rec.DecisionID,
		DecisionType:   rec.DecisionType,
		Candidates:     candidates,
		ChosenID:       rec.ChosenID,
		TieBreaker:     TieBreaker(rec.TieBreaker),
		AgentRationale: rec.AgentRationale,
		Provenance:     provenance,
	}, nil
}
