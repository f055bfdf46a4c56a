package decision

// Replay recomputes the tie-broken winner from record.Provenance's raw
// feature contributions and reports whether it still matches
// record.ChosenID - a pure Compute-kind function used both by the mismatch
// detector and by offline audit tooling. It never trusts the
// already-summed Candidate.Score; a record whose candidates field was
// edited after the fact without updating provenance still fails replay.
func Replay(record Record) (chosenID string, consistent bool) {
	scores := make(map[string]float64, len(record.Provenance))
	order := make([]string, 0, len(record.Provenance))

	for _, entry := range record.Provenance {
		var total float64
		for _, v := range entry.FeatureContributions {
			total += v
		}

		scores[entry.ID] = total
		order = append(order, entry.ID)
	}

	winner := breakTies(order, scores, record.TieBreaker)

	return winner, winner == record.ChosenID
}

// breakTies picks the highest-scoring ID in order, breaking ties per rule.
// order is iterated in its original (first-seen) sequence so
// TieBreakerFirstSeen needs no separate bookkeeping.
func breakTies(order []string, scores map[string]float64, rule TieBreaker) string {
	if len(order) == 0 {
		return ""
	}

	best := order[0]
	bestScore := scores[best]

	for _, id := range order[1:] {
		score := scores[id]

		switch {
		case score > bestScore:
			best, bestScore = id, score
		case score == bestScore && rule == TieBreakerLowestID && id < best:
			best = id
		}
	}

	return best
}
