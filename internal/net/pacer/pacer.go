// Package pacer implements the per-source throttling disciplines applied
// before every outbound call. Each adapter owns its own pacer; there is no
// global coordination between sources.
package pacer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Pacer blocks until the next outbound request is allowed to go out.
type Pacer interface {
	Wait(ctx context.Context) error
}

// sleep waits for d, returning early if ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Interval enforces a minimum gap between requests, then adds a uniform
// random jitter in [min, max]. Concurrent callers share the last-request
// timestamp, so calls against one adapter serialize naturally.
type Interval struct {
	mu   sync.Mutex
	min  time.Duration
	max  time.Duration
	last time.Time
	rnd  *rand.Rand
}

// NewInterval builds a min-interval pacer. max below min is clamped to min.
func NewInterval(min, max time.Duration) *Interval {
	if max < min {
		max = min
	}
	return &Interval{
		min: min,
		max: max,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *Interval) Wait(ctx context.Context) error {
	p.mu.Lock()
	var remainder time.Duration
	if !p.last.IsZero() {
		if elapsed := time.Since(p.last); elapsed < p.min {
			remainder = p.min - elapsed
		}
	}
	jitter := p.min
	if span := p.max - p.min; span > 0 {
		jitter += time.Duration(p.rnd.Int63n(int64(span)))
	}
	p.last = time.Now().Add(remainder + jitter)
	p.mu.Unlock()

	return sleep(ctx, remainder+jitter)
}

// Budget allows at most limit requests per fixed 60-second window. When the
// budget is spent it sleeps until the next window plus a one-second buffer.
type Budget struct {
	mu          sync.Mutex
	limit       int
	count       int
	windowStart time.Time
	window      time.Duration
}

// NewBudget builds a fixed-budget pacer of limit calls per minute.
func NewBudget(limit int) *Budget {
	return &Budget{limit: limit, window: time.Minute}
}

func (p *Budget) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if p.windowStart.IsZero() || now.Sub(p.windowStart) >= p.window {
		p.windowStart = now
		p.count = 0
	}

	if p.count >= p.limit {
		wait := p.window - now.Sub(p.windowStart) + time.Second
		log.Warn().
			Int("limit", p.limit).
			Dur("wait", wait).
			Msg("per-minute budget exhausted, sleeping until next window")
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		p.windowStart = time.Now()
		p.count = 0
	}

	p.count++
	return nil
}

// None is a pass-through pacer for tests and offline use.
type None struct{}

func (None) Wait(ctx context.Context) error { return ctx.Err() }
