package patternstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// FetchInjections returns every pattern_injections row recorded for
// sessionID, the set a feedback effect node splits attribution credit
// across.
func (s *Store) FetchInjections(ctx context.Context, sessionID string) ([]PatternInjection, error) {
	query := `
		SELECT injection_id, pattern_id, session_id, correlation_id, context_type, cohort, injected_at
		FROM pattern_injections
		WHERE session_id = $1
		ORDER BY injected_at ASC
	`

	rows, err := s.conn.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("patternstore: fetch injections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var injections []PatternInjection

	for rows.Next() {
		var inj PatternInjection

		if err := rows.Scan(
			&inj.InjectionID, &inj.PatternID, &inj.SessionID,
			&inj.CorrelationID, &inj.ContextType, &inj.Cohort, &inj.InjectedAt,
		); err != nil {
			return nil, fmt.Errorf("patternstore: scan injection row: %w", err)
		}

		injections = append(injections, inj)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patternstore: rows: %w", err)
	}

	return injections, nil
}

// RecordSessionOutcome records the terminal verdict for a session. session_id
// is the idempotency boundary (UNIQUE primary key): a second call for the
// same session inserts nothing and returns inserted=false so the caller can
// apply the ALREADY_RECORDED short-circuit from spec.md §4.6 step 2.
func (s *Store) RecordSessionOutcome(ctx context.Context, outcome SessionOutcome) (inserted bool, err error) {
	query := `
		INSERT INTO session_outcomes (session_id, outcome, correlation_id, run_id, evidence_signals, recorded_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NOW())
		ON CONFLICT (session_id) DO NOTHING
	`

	evidenceSignals := outcome.EvidenceSignals
	if len(evidenceSignals) == 0 {
		evidenceSignals = json.RawMessage(`{}`)
	}

	res, err := s.conn.ExecContext(ctx, query, outcome.SessionID, outcome.Outcome, outcome.CorrelationID, outcome.RunID, evidenceSignals)
	if err != nil {
		return false, fmt.Errorf("patternstore: insert session_outcome: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("patternstore: rows affected: %w", err)
	}

	return rows > 0, nil
}

// ApplyAttribution records one pattern's fractional credit for sessionID,
// folds its share of the outcome into the rolling window, and advances the
// pattern's evidence tier (never lowers it), all in a single transaction per
// pattern, so one pattern's failure (e.g. it was demoted/deleted between
// injection and outcome) does not roll back another pattern's
// already-committed credit. A replayed (session_id, pattern_id) pair inserts
// no second attributions row (ON CONFLICT DO NOTHING), but the outcome is
// still folded into the rolling window again; replay protection for a whole
// session comes from RecordSessionOutcome's already-recorded check.
func (s *Store) ApplyAttribution(
	ctx context.Context,
	sessionID, patternID string,
	outcome RollingOutcome,
	tier EvidenceTier,
	heuristic Heuristic,
	heuristicConfidence float64,
) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("patternstore: begin tx: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	if err := insertAttribution(ctx, tx, sessionID, patternID, outcome.Weight, heuristic, heuristicConfidence); err != nil {
		return err
	}

	if err := recordOutcomeInTx(ctx, tx, patternID, outcome, tier); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("patternstore: commit: %w", err)
	}

	return nil
}

func insertAttribution(ctx context.Context, tx *sql.Tx, sessionID, patternID string, weight float64, heuristic Heuristic, confidence float64) error {
	query := `
		INSERT INTO attributions (attribution_id, session_id, pattern_id, weight, heuristic, heuristic_confidence, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NOW())
		ON CONFLICT (session_id, pattern_id) DO NOTHING
	`

	if _, err := tx.ExecContext(ctx, query, sessionID, patternID, weight, heuristic, confidence); err != nil {
		return fmt.Errorf("patternstore: insert attribution: %w", err)
	}

	return nil
}

// recordOutcomeInTx is RecordOutcome's read-decide-write sequence, reused
// here inside ApplyAttribution's own transaction so the attribution row, the
// rolling-window update, and the evidence-tier advancement for the same
// pattern commit together.
func recordOutcomeInTx(ctx context.Context, tx *sql.Tx, patternID string, outcome RollingOutcome, tier EvidenceTier) error {
	var (
		metricsJSON []byte
		currentTier EvidenceTier
	)

	query := `SELECT rolling_metrics, evidence_tier FROM patterns WHERE pattern_id = $1 FOR UPDATE`

	err := tx.QueryRowContext(ctx, query, patternID).Scan(&metricsJSON, &currentTier)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("patternstore: %w: %s", ErrPatternNotFound, patternID)
	}

	if err != nil {
		return fmt.Errorf("patternstore: fetch rolling_metrics: %w", err)
	}

	var metrics RollingMetrics

	if err := json.Unmarshal(metricsJSON, &metrics); err != nil {
		return fmt.Errorf("patternstore: unmarshal rolling_metrics: %w", err)
	}

	updated := metrics.Record(outcome.Outcome)

	updatedJSON, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("patternstore: marshal rolling_metrics: %w", err)
	}

	advancedTier := currentTier.Max(tier)

	updateQuery := `UPDATE patterns SET rolling_metrics = $1, evidence_tier = $2 WHERE pattern_id = $3`

	if _, err := tx.ExecContext(ctx, updateQuery, updatedJSON, advancedTier, patternID); err != nil {
		return fmt.Errorf("patternstore: update rolling_metrics: %w", err)
	}

	return nil
}

// RecordInjection persists one pattern surfaced into an agent's context.
func (s *Store) RecordInjection(ctx context.Context, inj PatternInjection) (string, error) {
	query := `
		INSERT INTO pattern_injections (injection_id, pattern_id, session_id, correlation_id, context_type, cohort, injected_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NOW())
		RETURNING injection_id
	`

	var injectionID string

	err := s.conn.QueryRowContext(ctx, query, inj.PatternID, inj.SessionID, inj.CorrelationID, inj.ContextType, inj.Cohort).Scan(&injectionID)
	if err != nil {
		return "", fmt.Errorf("patternstore: insert injection: %w", err)
	}

	return injectionID, nil
}
