// Package retry implements the uniform backoff policy for upstream calls:
// at most three attempts, exponential wait with a per-adapter multiplier,
// capped. Only transport failures are retried; rate-limit signals need
// cool-down rather than backoff and surface immediately.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chanscan/chanscan/internal/fetch"
)

// Policy configures the backoff schedule for one adapter.
type Policy struct {
	Attempts   int
	Multiplier time.Duration
	Min        time.Duration
	Max        time.Duration
}

// DefaultPolicy mirrors the schedule most sources use: 3 attempts, waits of
// multiplier*2^n clamped to [1s, 30s].
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Multiplier: time.Second, Min: time.Second, Max: 30 * time.Second}
}

func (p Policy) backoff(attempt int) time.Duration {
	d := p.Multiplier << attempt
	if d < p.Min {
		d = p.Min
	}
	if d > p.Max {
		d = p.Max
	}
	return d
}

// Do runs fn until it succeeds, the attempt budget is spent, or the failure
// is not retryable. The last error is returned unchanged so its
// classification survives for the manager.
func Do(ctx context.Context, source string, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	var last error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fetch.NewError(fetch.KindCancelled, source, "cancelled before attempt", err)
		}
		last = fn(ctx)
		if last == nil {
			return nil
		}
		if fetch.KindOf(last) != fetch.KindTransport {
			return last
		}
		if attempt == p.Attempts-1 {
			break
		}
		wait := p.backoff(attempt)
		log.Warn().
			Str("source", source).
			Int("attempt", attempt+1).
			Dur("backoff", wait).
			Err(last).
			Msg("transport failure, backing off before retry")
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fetch.NewError(fetch.KindCancelled, source, "cancelled during backoff", ctx.Err())
		case <-t.C:
		}
	}
	return last
}
