package patternstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrDecisionNotFound reports a decision_id with no matching row.
var ErrDecisionNotFound = errors.New("patternstore: decision record not found")

// InsertDecisionRecord persists one auditable selection rationale. Callers
// in internal/decision own the typed Candidate/Provenance shapes; this
// method only moves their already-marshaled JSON in and out.
func (s *Store) InsertDecisionRecord(ctx context.Context, rec DecisionRecord) (string, error) {
	query := `
		INSERT INTO decision_records (decision_id, decision_type, candidates, chosen_id, tie_breaker, agent_rationale, provenance, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, NOW())
		RETURNING decision_id
	`

	var decisionID string

	err := s.conn.QueryRowContext(ctx, query,
		rec.DecisionType, rec.Candidates, rec.ChosenID, rec.TieBreaker, rec.AgentRationale, rec.Provenance,
	).Scan(&decisionID)
	if err != nil {
		return "", fmt.Errorf("patternstore: insert decision record: %w", err)
	}

	return decisionID, nil
}

// FetchDecisionRecord loads one persisted decision by id, for replay and
// audit endpoints that never trust the caller's recomputation of a decision
// they didn't originally record.
func (s *Store) FetchDecisionRecord(ctx context.Context, decisionID string) (DecisionRecord, error) {
	query := `
		SELECT decision_id, decision_type, candidates, chosen_id, tie_breaker, agent_rationale, provenance, created_at
		FROM decision_records
		WHERE decision_id = $1
	`

	var rec DecisionRecord

	err := s.conn.QueryRowContext(ctx, query, decisionID).Scan(
		&rec.DecisionID, &rec.DecisionType, &rec.Candidates, &rec.ChosenID,
		&rec.TieBreaker, &rec.AgentRationale, &rec.Provenance, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return DecisionRecord{}, ErrDecisionNotFound
	}

	if err != nil {
		return DecisionRecord{}, fmt.Errorf("patternstore: fetch decision record: %w", err)
	}

	return rec, nil
}
