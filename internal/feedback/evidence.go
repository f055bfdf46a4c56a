// Package feedback implements the attribution loop: splitting credit for a
// terminal SessionOutcome across the patterns injected into that session,
// and advancing each pattern's evidence tier from the signals the outcome
// carries.
package feedback

import (
	"encoding/json"

	"github.com/onex-learning/patternd/internal/patternstore"
)

// EvidenceSignals is the structured payload a SessionOutcome carries:
// automated test results, static-analysis findings, human acceptance, or
// whatever the producing agent attaches. Only the fields that influence
// tier computation are modeled explicitly; everything else passes through
// Raw for the mismatch detector and audit trail.
type EvidenceSignals struct {
	TestResultsPresent bool
	RunID              string
	RunSucceeded       bool
	Raw                json.RawMessage
}

// DecodeEvidenceSignals parses a SessionOutcome's raw evidence_signals JSON
// into the fields ComputeEvidenceTier needs.
func DecodeEvidenceSignals(raw json.RawMessage) (EvidenceSignals, error) {
	var wire struct {
		TestResults *struct{} `json:"test_results"`
		RunID       string    `json:"run_id"`
		RunStatus   string    `json:"run_status"`
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &wire); err != nil {
			return EvidenceSignals{}, err
		}
	}

	return EvidenceSignals{
		TestResultsPresent: wire.TestResults != nil,
		RunID:              wire.RunID,
		RunSucceeded:       wire.RunStatus == "succeeded",
		Raw:                raw,
	}, nil
}

// ComputeEvidenceTier implements spec.md §4.6 step 3 exactly: automated test
// results present -> MEASURED; run_id present and the run succeeded -> at
// least MEASURED; otherwise OBSERVED. It is a pure Compute-kind function -
// the caller is responsible for applying EvidenceTier.Max against the
// pattern's existing tier so evidence only ever advances, never regresses.
func ComputeEvidenceTier(signals EvidenceSignals) patternstore.EvidenceTier {
	if signals.TestResultsPresent {
		return patternstore.TierMeasured
	}

	if signals.RunID != "" && signals.RunSucceeded {
		return patternstore.TierMeasured
	}

	return patternstore.TierObserved
}
