package decision

import (
	"fmt"
	"strings"
)

// costClaimPhrases are the rationale substrings DetectMismatches treats as a
// claim that the chosen candidate won on cost. Ported in spirit from
// detect_mismatches's rationale-scanning approach (original_source's
// mismatch_detector module, retrieved only as its package __init__.py - the
// phrase list itself is original work grounded on spec.md §4.7's worked
// example: "chose X for lower cost" contradicted by provenance showing X has
// higher cost).
var costClaimPhrases = []string{"lower cost", "cheaper", "lowest cost", "cost advantage"}

// DetectMismatches flags conflicts between record's Layer 2 rationale and
// its Layer 1 provenance. Each check is independent; a record can surface
// more than one signal. A BLOCKER signal is the trigger internal/dispatch/node
// wires into an automatic ApplyTransition(..., to=BLACKLISTED, ...) call.
func DetectMismatches(record Record) []MismatchSignal {
	var signals []MismatchSignal

	chosen, chosenFound := findCandidate(record.Candidates, record.ChosenID)
	if !chosenFound {
		signals = append(signals, MismatchSignal{
			Type:     TypeChosenNotInCandidates,
			Severity: SeverityBlocker,
			Detail:   fmt.Sprintf("chosen_id %q is not among the %d recorded candidates", record.ChosenID, len(record.Candidates)),
		})

		return signals
	}

	if topScoring := topScore(record.Candidates); chosen.Score < topScoring {
		signals = append(signals, MismatchSignal{
			Type:     TypeNotTopScore,
			Severity: SeverityWarn,
			Detail:   fmt.Sprintf("chosen candidate %q scored %.4f, below the top score %.4f", chosen.ID, chosen.Score, topScoring),
		})
	}

	if signal, ok := detectCostClaimMismatch(record, chosen); ok {
		signals = append(signals, signal)
	}

	if _, consistent := Replay(record); !consistent {
		signals = append(signals, MismatchSignal{
			Type:     TypeTieBreakerMismatch,
			Severity: SeverityWarn,
			Detail:   fmt.Sprintf("replay recomputed a different winner than chosen_id %q under tie-breaker %q", record.ChosenID, record.TieBreaker),
		})
	}

	return signals
}

// detectCostClaimMismatch flags a rationale that claims a cost advantage
// when the chosen candidate's own "cost" score-breakdown dimension is not
// the lowest among candidates that also report one.
func detectCostClaimMismatch(record Record, chosen Candidate) (MismatchSignal, bool) {
	rationale := strings.ToLower(record.AgentRationale)

	claimsCostAdvantage := false

	for _, phrase := range costClaimPhrases {
		if strings.Contains(rationale, phrase) {
			claimsCostAdvantage = true
			break
		}
	}

	if !claimsCostAdvantage {
		return MismatchSignal{}, false
	}

	chosenCost, ok := chosen.ScoreBreakdown["cost"]
	if !ok {
		return MismatchSignal{}, false
	}

	for _, c := range record.Candidates {
		if c.ID == chosen.ID {
			continue
		}

		cost, ok := c.ScoreBreakdown["cost"]
		if ok && cost < chosenCost {
			return MismatchSignal{
				Type:     TypeCostClaimContradicted,
				Severity: SeverityBlocker,
				Detail:   fmt.Sprintf("rationale claims a cost advantage but candidate %q has lower cost (%.4f < %.4f)", c.ID, cost, chosenCost),
			}, true
		}
	}

	return MismatchSignal{}, false
}

func findCandidate(candidates []Candidate, id string) (Candidate, bool) {
	for _, c := range candidates {
		if c.ID == id {
			return c, true
		}
	}

	return Candidate{}, false
}

func topScore(candidates []Candidate) float64 {
	var top float64

	for i, c := range candidates {
		if i == 0 || c.Score > top {
			top = c.Score
		}
	}

	return top
}
