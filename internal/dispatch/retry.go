package dispatch

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/onex-learning/patternd/internal/config"
)

// backoff gates redelivery of RetryableFailure messages with an exponential
// delay plus jitter, rate-limited per Engine instance so a burst of
// transient failures cannot hammer the broker with immediate re-fetches.
type backoff struct {
	limiter *rate.Limiter
	base    time.Duration
	max     time.Duration
}

func newBackoff() *backoff {
	base := config.GetEnvDuration("DISPATCH_RETRY_BASE_DELAY", 200*time.Millisecond)
	max := config.GetEnvDuration("DISPATCH_RETRY_MAX_DELAY", 30*time.Second)

	return &backoff{
		limiter: rate.NewLimiter(rate.Every(base), 1),
		base:    base,
		max:     max,
	}
}

// wait blocks for an exponentially increasing delay (capped at b.max, with
// up to 20% jitter) before the caller redelivers attempt+1. attempt is
// zero-based (the first retry passes attempt=0).
func (b *backoff) wait(ctx context.Context, attempt int) error {
	delay := b.base << attempt //nolint:gosec
	if delay <= 0 || delay > b.max {
		delay = b.max
	}

	jitter := time.Duration(rand.Int64N(int64(delay) / 5)) //nolint:gosec
	delay += jitter

	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
