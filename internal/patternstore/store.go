package patternstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/lib/pq"

	"github.com/onex-learning/patternd/internal/config"
	"github.com/onex-learning/patternd/internal/storage"
)

const defaultRollingWindowSize = 20

// Store is the transactional home of pattern state: ctx-first methods, ON
// CONFLICT upserts, and SELECT ... FOR UPDATE row locks guarding
// read-decide-write sequences.
type Store struct {
	conn              *storage.Connection
	logger            *slog.Logger
	rollingWindowSize int
}

// Option configures optional Store behavior.
type Option func(*Store)

// WithRollingWindowSize overrides the default rolling-metrics window (20).
func WithRollingWindowSize(n int) Option {
	return func(s *Store) {
		s.rollingWindowSize = n
	}
}

// New constructs a Store over an existing database connection.
func New(conn *storage.Connection, opts ...Option) (*Store, error) {
	if conn == nil {
		return nil, ErrNoDatabaseConn
	}

	s := &Store{
		conn: conn,
		logger: slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
		})),
		rollingWindowSize: config.GetEnvInt("ROLLING_WINDOW_SIZE", defaultRollingWindowSize),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.rollingWindowSize <= 0 {
		return nil, ErrInvalidWindowSize
	}

	return s, nil
}

// HealthCheck verifies the underlying database connection is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.conn == nil {
		return ErrNoDatabaseConn
	}

	return s.conn.HealthCheck(ctx)
}

// UpsertPattern inserts a new pattern lineage if signatureHash is unseen, or
// returns the pattern_id of the existing latest version otherwise. Idempotent
// per spec.md §4.2.
func (s *Store) UpsertPattern(
	ctx context.Context,
	signature, signatureHash string,
	fields PatternFields,
) (string, error) {
	domainJSON, err := json.Marshal(fields.DomainCandidates)
	if err != nil {
		return "", fmt.Errorf("patternstore: marshal domain_candidates: %w", err)
	}

	metrics := NewRollingMetrics(s.rollingWindowSize)

	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return "", fmt.Errorf("patternstore: marshal rolling_metrics: %w", err)
	}

	var patternID string

	latestQuery := `SELECT pattern_id FROM patterns WHERE signature_hash = $1 ORDER BY version DESC LIMIT 1`

	err = s.conn.QueryRowContext(ctx, latestQuery, signatureHash).Scan(&patternID)
	if err == nil {
		return patternID, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("patternstore: fetch latest version: %w", err)
	}

	query := `
		INSERT INTO patterns (
			pattern_id, signature, signature_hash, version,
			lifecycle_status, evidence_tier, confidence,
			rolling_metrics, domain_candidates, content_fingerprint,
			created_at, last_transitioned_at
		) VALUES (
			gen_random_uuid(), $1, $2, 1,
			$3, $4, $5,
			$6, $7, $8,
			NOW(), NOW()
		)
		ON CONFLICT (signature_hash, version) DO UPDATE
			SET signature = patterns.signature
		RETURNING pattern_id
	`

	err = s.conn.QueryRowContext(ctx, query,
		signature, signatureHash,
		StatusCandidate, TierUnmeasured, fields.Confidence,
		metricsJSON, domainJSON, fields.ContentFingerprint,
	).Scan(&patternID)
	if err != nil {
		return "", fmt.Errorf("patternstore: upsert pattern: %w", err)
	}

	return patternID, nil
}

// StartNewVersion creates a new row for an existing signature_hash lineage
// with an incremented version. The previous row is left untouched. Fails
// with ErrUnknownSignature if the lineage has never been observed.
// idempotencyKey makes re-delivery of the same version-bump command a safe
// no-op, the same way ApplyTransition's idempotencyKey does: a replayed key
// returns the pattern_id the first call already created instead of
// inserting a second version row.
func (s *Store) StartNewVersion(ctx context.Context, signatureHash string, diff PatternDiff, idempotencyKey string) (string, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("patternstore: begin tx: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	existing, alreadyApplied, err := versionAuditPatternID(ctx, tx, idempotencyKey)
	if err != nil {
		return "", err
	}

	if alreadyApplied {
		return existing, nil
	}

	latest, err := fetchLatestBySignature(ctx, tx, signatureHash)
	if err != nil {
		return "", err
	}

	confidence := latest.Confidence
	if diff.Confidence != nil {
		confidence = *diff.Confidence
	}

	domainCandidates := latest.DomainCandidates
	if diff.DomainCandidates != nil {
		domainCandidates = diff.DomainCandidates
	}

	fingerprint := latest.ContentFingerprint
	if diff.ContentFingerprint != "" {
		fingerprint = diff.ContentFingerprint
	}

	signature := latest.Signature
	if diff.Signature != "" {
		signature = diff.Signature
	}

	domainJSON, err := json.Marshal(domainCandidates)
	if err != nil {
		return "", fmt.Errorf("patternstore: marshal domain_candidates: %w", err)
	}

	metrics := NewRollingMetrics(s.rollingWindowSize)

	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return "", fmt.Errorf("patternstore: marshal rolling_metrics: %w", err)
	}

	var patternID string

	query := `
		INSERT INTO patterns (
			pattern_id, signature, signature_hash, version,
			lifecycle_status, evidence_tier, confidence,
			rolling_metrics, domain_candidates, content_fingerprint,
			created_at, last_transitioned_at
		) VALUES (
			gen_random_uuid(), $1, $2, $3,
			$4, $5, $6,
			$7, $8, $9,
			NOW(), NOW()
		)
		RETURNING pattern_id
	`

	err = tx.QueryRowContext(ctx, query,
		signature, signatureHash, latest.Version+1,
		StatusCandidate, TierUnmeasured, confidence,
		metricsJSON, domainJSON, fingerprint,
	).Scan(&patternID)
	if err != nil {
		return "", fmt.Errorf("patternstore: insert new version: %w", err)
	}

	if err := insertVersionAudit(ctx, tx, patternID, signatureHash, idempotencyKey); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("patternstore: commit: %w", err)
	}

	return patternID, nil
}

// versionAuditPatternID looks up the pattern_id a prior StartNewVersion call
// already created for idempotencyKey, if any.
func versionAuditPatternID(ctx context.Context, tx *sql.Tx, idempotencyKey string) (string, bool, error) {
	var patternID string

	query := `SELECT pattern_id FROM pattern_version_audit WHERE idempotency_key = $1 LIMIT 1`

	err := tx.QueryRowContext(ctx, query, idempotencyKey).Scan(&patternID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("patternstore: check version idempotency: %w", err)
	}

	return patternID, true, nil
}

func insertVersionAudit(ctx context.Context, tx *sql.Tx, patternID, signatureHash, idempotencyKey string) error {
	query := `
		INSERT INTO pattern_version_audit (audit_id, pattern_id, signature_hash, idempotency_key, applied_at)
		VALUES (gen_random_uuid(), $1, $2, $3, NOW())
	`

	_, err := tx.ExecContext(ctx, query, patternID, signatureHash, idempotencyKey)
	if err != nil {
		return fmt.Errorf("patternstore: insert version audit: %w", err)
	}

	return nil
}

// fetchLatestBySignature returns the highest-version row for signatureHash.
func fetchLatestBySignature(ctx context.Context, tx *sql.Tx, signatureHash string) (Pattern, error) {
	query := `
		SELECT pattern_id, signature, version, confidence, domain_candidates, content_fingerprint
		FROM patterns
		WHERE signature_hash = $1
		ORDER BY version DESC
		LIMIT 1
		FOR UPDATE
	`

	var (
		p          Pattern
		domainJSON []byte
	)

	err := tx.QueryRowContext(ctx, query, signatureHash).Scan(
		&p.PatternID, &p.Signature, &p.Version, &p.Confidence, &domainJSON, &p.ContentFingerprint,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Pattern{}, ErrUnknownSignature
	}

	if err != nil {
		return Pattern{}, fmt.Errorf("patternstore: fetch latest version: %w", err)
	}

	p.SignatureHash = signatureHash

	if err := json.Unmarshal(domainJSON, &p.DomainCandidates); err != nil {
		return Pattern{}, fmt.Errorf("patternstore: unmarshal domain_candidates: %w", err)
	}

	return p, nil
}

// ApplyTransition applies a lifecycle transition in one transaction: it
// verifies the optimistic lock (current status equals fromStatus), records
// the audit row and gate snapshot, and updates the projection row. Replaying
// the same idempotencyKey returns ALREADY_APPLIED without side effects.
func (s *Store) ApplyTransition(
	ctx context.Context,
	patternID string,
	fromStatus, toStatus LifecycleStatus,
	tier EvidenceTier,
	snapshot GateSnapshot,
	idempotencyKey string,
) (TransitionResult, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("patternstore: begin tx: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	alreadyApplied, err := auditKeyExists(ctx, tx, idempotencyKey)
	if err != nil {
		return "", err
	}

	if alreadyApplied {
		return TransitionAlreadyApplied, nil
	}

	current, err := fetchStatusAndTier(ctx, tx, patternID)
	if err != nil {
		return "", err
	}

	if current.status != fromStatus {
		return TransitionStaleStatus, nil
	}

	if !isLegalEdge(fromStatus, toStatus) {
		return TransitionGateFailed, nil
	}

	if !tier.AtLeast(current.tier) {
		return TransitionGateFailed, nil
	}

	snapshotJSON, err := snapshot.marshal()
	if err != nil {
		return "", fmt.Errorf("patternstore: marshal gate_snapshot: %w", err)
	}

	if err := insertLifecycleAudit(ctx, tx, patternID, fromStatus, toStatus, tier, snapshotJSON, idempotencyKey); err != nil {
		return "", err
	}

	updateQuery := `
		UPDATE patterns
		SET lifecycle_status = $1, evidence_tier = $2, last_transitioned_at = NOW()
		WHERE pattern_id = $3 AND lifecycle_status = $4
	`

	res, err := tx.ExecContext(ctx, updateQuery, toStatus, tier, patternID, fromStatus)
	if err != nil {
		return "", fmt.Errorf("patternstore: update projection: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("patternstore: rows affected: %w", err)
	}

	if rows == 0 {
		return TransitionStaleStatus, nil
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("patternstore: commit: %w", err)
	}

	return TransitionApplied, nil
}

// CurrentLifecycleState is a plain, unlocked read of a pattern's lifecycle
// status and evidence tier - for callers that need fromStatus to build an
// ApplyTransition call rather than for the transition itself, which takes
// its own lock. A lifecycle_status that has since moved on surfaces as
// TransitionStaleStatus from ApplyTransition, not as an error here.
func (s *Store) CurrentLifecycleState(ctx context.Context, patternID string) (LifecycleStatus, EvidenceTier, error) {
	var (
		status LifecycleStatus
		tier   EvidenceTier
	)

	query := `SELECT lifecycle_status, evidence_tier FROM patterns WHERE pattern_id = $1`

	err := s.conn.QueryRowContext(ctx, query, patternID).Scan(&status, &tier)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrPatternNotFound
	}

	if err != nil {
		return "", "", fmt.Errorf("patternstore: current lifecycle state: %w", err)
	}

	return status, tier, nil
}

type currentProjection struct {
	status LifecycleStatus
	tier   EvidenceTier
}

// fetchStatusAndTier reads the current lifecycle status and evidence tier
// with a row lock, guarding the read-decide-write sequence in ApplyTransition.
func fetchStatusAndTier(ctx context.Context, tx *sql.Tx, patternID string) (currentProjection, error) {
	var proj currentProjection

	query := `SELECT lifecycle_status, evidence_tier FROM patterns WHERE pattern_id = $1 FOR UPDATE`

	err := tx.QueryRowContext(ctx, query, patternID).Scan(&proj.status, &proj.tier)
	if errors.Is(err, sql.ErrNoRows) {
		return currentProjection{}, ErrPatternNotFound
	}

	if err != nil {
		return currentProjection{}, fmt.Errorf("patternstore: fetch status/tier: %w", err)
	}

	return proj, nil
}

func auditKeyExists(ctx context.Context, tx *sql.Tx, idempotencyKey string) (bool, error) {
	var exists int

	query := `SELECT 1 FROM pattern_lifecycle_audit WHERE idempotency_key = $1 LIMIT 1`

	err := tx.QueryRowContext(ctx, query, idempotencyKey).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("patternstore: check audit idempotency: %w", err)
	}

	return true, nil
}

func insertLifecycleAudit(
	ctx context.Context,
	tx *sql.Tx,
	patternID string,
	fromStatus, toStatus LifecycleStatus,
	tier EvidenceTier,
	snapshotJSON []byte,
	idempotencyKey string,
) error {
	query := `
		INSERT INTO pattern_lifecycle_audit (
			audit_id, pattern_id, from_status, to_status, evidence_tier,
			gate_snapshot, idempotency_key, applied_at
		) VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, NOW())
	`

	_, err := tx.ExecContext(ctx, query, patternID, fromStatus, toStatus, tier, snapshotJSON, idempotencyKey)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("patternstore: %w", ErrUnknownSignature)
		}

		return fmt.Errorf("patternstore: insert lifecycle audit: %w", err)
	}

	return nil
}

// legalEdges enumerates the FSM's allowed transitions, consulted by
// ApplyTransition before committing a status change. The full guard logic
// (evidence thresholds, rolling-metric gates) lives in the lifecycle
// package; this is only the shape of the graph.
var legalEdges = map[LifecycleStatus]map[LifecycleStatus]bool{
	StatusCandidate:   {StatusProvisional: true, StatusBlacklisted: true},
	StatusProvisional: {StatusValidated: true, StatusBlacklisted: true},
	StatusValidated:   {StatusDeprecated: true, StatusBlacklisted: true},
	StatusDeprecated:  {StatusBlacklisted: true},
	StatusBlacklisted: {},
}

func isLegalEdge(from, to LifecycleStatus) bool {
	return legalEdges[from][to]
}

// RecordOutcome updates the rolling window and counters for patternID
// atomically, reflecting one pattern's weighted share of a processed
// SessionOutcome.
func (s *Store) RecordOutcome(ctx context.Context, patternID string, outcome RollingOutcome) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("patternstore: begin tx: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	var metricsJSON []byte

	query := `SELECT rolling_metrics FROM patterns WHERE pattern_id = $1 FOR UPDATE`

	err = tx.QueryRowContext(ctx, query, patternID).Scan(&metricsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPatternNotFound
	}

	if err != nil {
		return fmt.Errorf("patternstore: fetch rolling_metrics: %w", err)
	}

	var metrics RollingMetrics

	if err := json.Unmarshal(metricsJSON, &metrics); err != nil {
		return fmt.Errorf("patternstore: unmarshal rolling_metrics: %w", err)
	}

	// Weight below 1.0 still records a full outcome entry in the window;
	// weight only scales the attribution credit recorded separately, not
	// the lifecycle window's occurrence counting.
	_ = outcome.Weight

	updated := metrics.Record(outcome.Outcome)

	updatedJSON, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("patternstore: marshal rolling_metrics: %w", err)
	}

	updateQuery := `UPDATE patterns SET rolling_metrics = $1 WHERE pattern_id = $2`

	if _, err := tx.ExecContext(ctx, updateQuery, updatedJSON, patternID); err != nil {
		return fmt.Errorf("patternstore: update rolling_metrics: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("patternstore: commit: %w", err)
	}

	return nil
}

// FetchPatternByID is a plain, unlocked single-row read of one pattern
// version - the lookup path for the pattern detail endpoint, which then
// uses the returned SignatureHash to pull the rest of its lineage.
func (s *Store) FetchPatternByID(ctx context.Context, patternID string) (Pattern, error) {
	query := `
		SELECT pattern_id, signature, signature_hash, version,
			lifecycle_status, evidence_tier, confidence,
			rolling_metrics, domain_candidates, content_fingerprint,
			created_at, last_transitioned_at
		FROM patterns
		WHERE pattern_id = $1
	`

	var (
		p           Pattern
		metricsJSON []byte
		domainJSON  []byte
	)

	err := s.conn.QueryRowContext(ctx, query, patternID).Scan(
		&p.PatternID, &p.Signature, &p.SignatureHash, &p.Version,
		&p.LifecycleStatus, &p.EvidenceTier, &p.Confidence,
		&metricsJSON, &domainJSON, &p.ContentFingerprint,
		&p.CreatedAt, &p.LastTransitionedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Pattern{}, ErrPatternNotFound
	}

	if err != nil {
		return Pattern{}, fmt.Errorf("patternstore: fetch pattern by id: %w", err)
	}

	if err := json.Unmarshal(metricsJSON, &p.RollingMetrics); err != nil {
		return Pattern{}, fmt.Errorf("patternstore: unmarshal rolling_metrics: %w", err)
	}

	if err := json.Unmarshal(domainJSON, &p.DomainCandidates); err != nil {
		return Pattern{}, fmt.Errorf("patternstore: unmarshal domain_candidates: %w", err)
	}

	return p, nil
}

// QueryPatterns is a read-only lookup supporting filtering by signature
// hash, lifecycle status, domain, and recency.
func (s *Store) QueryPatterns(ctx context.Context, filters PatternFilters, limit int) ([]Pattern, error) {
	query, args := buildQueryPatternsSQL(filters, limit)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("patternstore: query patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []Pattern

	for rows.Next() {
		var (
			p           Pattern
			metricsJSON []byte
			domainJSON  []byte
		)

		if err := rows.Scan(
			&p.PatternID, &p.Signature, &p.SignatureHash, &p.Version,
			&p.LifecycleStatus, &p.EvidenceTier, &p.Confidence,
			&metricsJSON, &domainJSON, &p.ContentFingerprint,
			&p.CreatedAt, &p.LastTransitionedAt,
		); err != nil {
			return nil, fmt.Errorf("patternstore: scan pattern row: %w", err)
		}

		if err := json.Unmarshal(metricsJSON, &p.RollingMetrics); err != nil {
			return nil, fmt.Errorf("patternstore: unmarshal rolling_metrics: %w", err)
		}

		if err := json.Unmarshal(domainJSON, &p.DomainCandidates); err != nil {
			return nil, fmt.Errorf("patternstore: unmarshal domain_candidates: %w", err)
		}

		patterns = append(patterns, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("patternstore: rows: %w", err)
	}

	return patterns, nil
}

func buildQueryPatternsSQL(filters PatternFilters, limit int) (string, []any) {
	base := `
		SELECT pattern_id, signature, signature_hash, version,
			lifecycle_status, evidence_tier, confidence,
			rolling_metrics, domain_candidates, content_fingerprint,
			created_at, last_transitioned_at
		FROM patterns
		WHERE 1=1
	`

	var args []any

	if filters.SignatureHash != "" {
		args = append(args, filters.SignatureHash)
		base += fmt.Sprintf(" AND signature_hash = $%d", len(args))
	}

	if filters.Status != "" {
		args = append(args, filters.Status)
		base += fmt.Sprintf(" AND lifecycle_status = $%d", len(args))
	}

	if filters.Domain != "" {
		args = append(args, filters.Domain)
		base += fmt.Sprintf(" AND domain_candidates @> jsonb_build_array(jsonb_build_object('domain', $%d::text))", len(args))
	}

	if !filters.Since.IsZero() {
		args = append(args, filters.Since)
		base += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}

	base += " ORDER BY created_at DESC"

	if limit > 0 {
		args = append(args, limit)
		base += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return base, args
}
