// Package decision implements decision-record emission and rationale
// mismatch detection: every model/route/pattern selection is recorded with
// both its structured scoring (Layer 1 provenance) and a natural-language
// explanation (Layer 2 rationale), and a detector flags when the two
// disagree.
package decision

// Candidate is one scored option considered by a selection - the final
// per-candidate score and its dimension breakdown, persisted in
// decision_records.candidates.
type Candidate struct {
	ID             string             `json:"id"`
	Score          float64            `json:"score"`
	ScoreBreakdown map[string]float64 `json:"score_breakdown,omitempty"`
}

// ProvenanceEntry is one candidate's raw feature contributions - the inputs
// the scoring function summed to produce that candidate's Score, persisted
// in decision_records.provenance. Replay recomputes the score vector from
// this rather than trusting the already-summed Candidate.Score, so a record
// whose Candidates field was hand-edited after the fact still fails replay.
type ProvenanceEntry struct {
	ID                   string             `json:"id"`
	FeatureContributions map[string]float64 `json:"feature_contributions"`
}

// TieBreaker names the deterministic rule applied when two or more
// candidates recompute to the same top score.
type TieBreaker string

const (
	// TieBreakerLowestID picks the lexicographically smallest candidate ID.
	TieBreakerLowestID TieBreaker = "lowest_id"

	// TieBreakerFirstSeen picks whichever tied candidate appears first in
	// the candidate list.
	TieBreakerFirstSeen TieBreaker = "first_seen"
)

// Record is the decoded, typed form of one patternstore.DecisionRecord -
// the in-memory shape both Replay and DetectMismatches operate on.
type Record struct {
	DecisionID     string
	DecisionType   string
	Candidates     []Candidate
	ChosenID       string
	TieBreaker     TieBreaker
	AgentRationale string
	Provenance     []ProvenanceEntry
}

// MismatchSeverity ranks how serious a detected Layer1/Layer2 conflict is.
type MismatchSeverity string

const (
	SeverityInfo    MismatchSeverity = "INFO"
	SeverityWarn    MismatchSeverity = "WARN"
	SeverityBlocker MismatchSeverity = "BLOCKER"
)

// MismatchType names the category of conflict detected.
type MismatchType string

const (
	// TypeChosenNotInCandidates: chosen_id does not appear in the candidate
	// set at all - the record is internally inconsistent, not just poorly
	// explained.
	TypeChosenNotInCandidates MismatchType = "CHOSEN_NOT_IN_CANDIDATES"

	// TypeNotTopScore: chosen_id's recorded score is not the maximum among
	// candidates.
	TypeNotTopScore MismatchType = "NOT_TOP_SCORE"

	// TypeCostClaimContradicted: rationale claims a cost advantage the
	// score breakdown's "cost" dimension contradicts.
	TypeCostClaimContradicted MismatchType = "COST_CLAIM_CONTRADICTED"

	// TypeTieBreakerMismatch: Replay's recomputed winner disagrees with
	// chosen_id.
	TypeTieBreakerMismatch MismatchType = "TIE_BREAKER_MISMATCH"
)

// MismatchSignal is one detected conflict between a record's Layer 2
// rationale (or its own internal consistency) and its Layer 1 provenance.
type MismatchSignal struct {
	Type     MismatchType     `json:"type"`
	Severity MismatchSeverity `json:"severity"`
	Detail   string           `json:"detail"`
}
