package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/onex-learning/patternd/internal/storage"
)

// defaultProcessedEventTTL is the 24-hour idempotency window, applied to
// any subscribed topic.
const defaultProcessedEventTTL = 24 * time.Hour

// idempotencyGate checks and records (topic, event_id) pairs against
// processed_events with TTL-gated duplicate suppression, for any topic the
// engine dispatches.
type idempotencyGate struct {
	conn *storage.Connection
	ttl  time.Duration
}

func newIdempotencyGate(conn *storage.Connection, ttl time.Duration) *idempotencyGate {
	if ttl <= 0 {
		ttl = defaultProcessedEventTTL
	}

	return &idempotencyGate{conn: conn, ttl: ttl}
}

// checkAndRecord reports whether (topic, eventID) was already processed. If
// not, it records the pair inside the same transaction the caller passes in,
// so the idempotency record and the handler's own mutation commit or roll
// back together.
func (g *idempotencyGate) checkAndRecord(ctx context.Context, tx *sql.Tx, topic, eventID string) (alreadyProcessed bool, err error) {
	const checkQuery = `
		SELECT 1 FROM processed_events
		WHERE topic = $1 AND event_id = $2 AND expires_at > NOW()
		LIMIT 1
	`

	var exists int

	err = tx.QueryRowContext(ctx, checkQuery, topic, eventID).Scan(&exists)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// not a duplicate, fall through to record
	case err != nil:
		return false, fmt.Errorf("%w: %w", ErrIdempotencyCheckFailed, err)
	default:
		return true, nil
	}

	const insertQuery = `
		INSERT INTO processed_events (topic, event_id, expires_at)
		VALUES ($1, $2, NOW() + ($3 * INTERVAL '1 second'))
		ON CONFLICT (topic, event_id) DO NOTHING
	`

	if _, err := tx.ExecContext(ctx, insertQuery, topic, eventID, g.ttl.Seconds()); err != nil {
		return false, fmt.Errorf("%w: failed to record processed event: %w", ErrIdempotencyCheckFailed, err)
	}

	return false, nil
}
