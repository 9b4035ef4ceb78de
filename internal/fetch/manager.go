package fetch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/chanscan/chanscan/internal/market"
	"github.com/chanscan/chanscan/internal/telemetry/metrics"
)

// batchChunk is the largest symbol count sent in one batched quote request.
const batchChunk = 800

// Manager fronts the registered fetchers with priority-ordered failover.
// Sources in rate-limit cool-down are skipped until the cool-down elapses;
// sources that report missing credentials are skipped for the session.
type Manager struct {
	mu          sync.Mutex
	fetchers    []Fetcher
	cooldown    map[string]time.Time
	disabled    map[string]bool
	breakers    map[string]*gobreaker.CircuitBreaker
	cooldownFor time.Duration

	bars   *TTLCache[market.Series]
	quotes *TTLCache[*market.Quote]
}

// ManagerOption mutates a Manager at construction time.
type ManagerOption func(*Manager)

// WithCooldown overrides the rate-limit cool-down interval.
func WithCooldown(d time.Duration) ManagerOption {
	return func(m *Manager) { m.cooldownFor = d }
}

// WithCacheTTLs overrides the bar and quote cache TTLs.
func WithCacheTTLs(bars, quotes time.Duration) ManagerOption {
	return func(m *Manager) {
		m.bars = NewTTLCache[market.Series](bars)
		m.quotes = NewTTLCache[*market.Quote](quotes)
	}
}

// NewManager builds a manager over the given fetchers, sorted ascending by
// priority. Default cool-down is 5 minutes; caches default to 5m bars / 30s
// quotes.
func NewManager(fetchers []Fetcher, opts ...ManagerOption) *Manager {
	m := &Manager{
		cooldown:    make(map[string]time.Time),
		disabled:    make(map[string]bool),
		breakers:    make(map[string]*gobreaker.CircuitBreaker),
		cooldownFor: 5 * time.Minute,
		bars:        NewTTLCache[market.Series](5 * time.Minute),
		quotes:      NewTTLCache[*market.Quote](30 * time.Second),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, f := range fetchers {
		m.Register(f)
	}
	return m
}

// Register adds a fetcher, keeping the candidate list sorted by priority.
func (m *Manager) Register(f Fetcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchers = append(m.fetchers, f)
	sort.SliceStable(m.fetchers, func(i, j int) bool {
		return m.fetchers[i].Priority() < m.fetchers[j].Priority()
	})
	m.breakers[f.Name()] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        f.Name(),
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 3 },
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Rate limits get explicit cool-down, missing credentials a
			// permanent skip; neither should also trip the breaker.
			switch KindOf(err) {
			case KindRateLimit, KindNotConfigured, KindCancelled:
				return true
			}
			return false
		},
	})
}

// Sources lists the registered fetcher names in priority order.
func (m *Manager) Sources() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.fetchers))
	for i, f := range m.fetchers {
		names[i] = f.Name()
	}
	return names
}

// candidates snapshots the fetchers currently worth consulting.
func (m *Manager) candidates() []Fetcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := make([]Fetcher, 0, len(m.fetchers))
	for _, f := range m.fetchers {
		if m.disabled[f.Name()] {
			continue
		}
		if until, ok := m.cooldown[f.Name()]; ok {
			if now.Before(until) {
				continue
			}
			delete(m.cooldown, f.Name())
		}
		out = append(out, f)
	}
	return out
}

func (m *Manager) markCooldown(name string) {
	m.mu.Lock()
	m.cooldown[name] = time.Now().Add(m.cooldownFor)
	m.mu.Unlock()
	metrics.Cooldowns.WithLabelValues(name).Inc()
}

func (m *Manager) markDisabled(name string) {
	m.mu.Lock()
	m.disabled[name] = true
	m.mu.Unlock()
}

// CoolingDown reports whether the named source is currently in cool-down.
func (m *Manager) CoolingDown(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.cooldown[name]
	return ok && time.Now().Before(until)
}

// failover walks the candidate list in priority order until fn succeeds on
// one source. It returns the name of the source that served the request.
func (m *Manager) failover(ctx context.Context, op string, fn func(ctx context.Context, f Fetcher) error) (string, error) {
	logger := log.With().Str("op", op).Str("request_id", uuid.NewString()).Logger()

	cands := m.candidates()
	if len(cands) == 0 {
		return "", NewError(KindExhausted, "manager", "no enabled sources", nil)
	}

	for i, f := range cands {
		if err := ctx.Err(); err != nil {
			return "", NewError(KindCancelled, "manager", "request cancelled", err)
		}

		name := f.Name()
		m.mu.Lock()
		breaker := m.breakers[name]
		m.mu.Unlock()

		_, err := breaker.Execute(func() (interface{}, error) {
			return nil, fn(ctx, f)
		})
		if err == nil {
			metrics.FetchRequests.WithLabelValues(name, op, "ok").Inc()
			logger.Debug().Str("source", name).Msg("source served request")
			return name, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logger.Warn().Str("source", name).Msg("circuit open, skipping source")
			metrics.Failovers.WithLabelValues(name).Inc()
			continue
		}

		kind := KindOf(err)
		metrics.FetchRequests.WithLabelValues(name, op, kind.String()).Inc()

		switch kind {
		case KindCancelled:
			return "", err
		case KindRateLimit:
			logger.Warn().Str("source", name).Err(err).Msg("rate limited, cooling source down")
			m.markCooldown(name)
		case KindNotConfigured:
			logger.Info().Str("source", name).Msg("source not configured, disabling for session")
			m.markDisabled(name)
		default:
			logger.Warn().Str("source", name).Err(err).Msg("source failed, trying next")
		}
		if i < len(cands)-1 {
			metrics.Failovers.WithLabelValues(name).Inc()
		}
	}

	return "", NewError(KindExhausted, "manager",
		fmt.Sprintf("all %d candidate sources failed", len(cands)), nil)
}

// GetDailyData fetches canonical daily bars with failover and a read-through
// cache keyed on (code, days). The returned string names the serving source,
// or "cache" on a hit.
func (m *Manager) GetDailyData(ctx context.Context, code string, days int) (market.Series, string, error) {
	key := fmt.Sprintf("%s:%d", code, days)
	if bars, ok := m.bars.Get(key); ok {
		metrics.CacheHits.WithLabelValues("bars").Inc()
		return bars, "cache", nil
	}

	var bars market.Series
	source, err := m.failover(ctx, "daily", func(ctx context.Context, f Fetcher) error {
		got, err := f.GetDailyData(ctx, code, days)
		if err != nil {
			return err
		}
		if len(got) == 0 {
			return NewError(KindEmpty, f.Name(), "no daily rows", nil)
		}
		bars = got
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	m.bars.Set(key, bars)
	return bars, source, nil
}

// GetRealtimeQuote fetches a snapshot with failover and a short-TTL cache.
func (m *Manager) GetRealtimeQuote(ctx context.Context, code string) (*market.Quote, string, error) {
	if q, ok := m.quotes.Get(code); ok {
		metrics.CacheHits.WithLabelValues("quotes").Inc()
		return q, "cache", nil
	}

	var quote *market.Quote
	source, err := m.failover(ctx, "quote", func(ctx context.Context, f Fetcher) error {
		got, err := f.GetRealtimeQuote(ctx, code)
		if err != nil {
			return err
		}
		if got == nil {
			return NewError(KindEmpty, f.Name(), "no quote for code", nil)
		}
		quote = got
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	m.quotes.Set(code, quote)
	return quote, source, nil
}

// GetFundamentalData fetches best-effort fundamentals with failover. Sources
// that answer with an all-zero record are treated as empty so a richer source
// further down the list gets a chance.
func (m *Manager) GetFundamentalData(ctx context.Context, code string) (*market.Fundamental, string, error) {
	var fund *market.Fundamental
	source, err := m.failover(ctx, "fundamental", func(ctx context.Context, f Fetcher) error {
		got, err := f.GetFundamentalData(ctx, code)
		if err != nil {
			return err
		}
		if got == nil || *got == (market.Fundamental{}) {
			return NewError(KindEmpty, f.Name(), "no fundamental fields", nil)
		}
		fund = got
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return fund, source, nil
}

// GetEnhancedData aggregates bars, quote and fundamentals. Bars decide the
// attributed source; quote and fundamentals are best-effort extras.
func (m *Manager) GetEnhancedData(ctx context.Context, code string, days int) (*market.Enhanced, string, error) {
	bars, source, err := m.GetDailyData(ctx, code, days)
	if err != nil {
		return nil, "", err
	}
	out := &market.Enhanced{Code: code, Bars: bars}
	if q, _, err := m.GetRealtimeQuote(ctx, code); err == nil {
		out.Quote = q
	}
	if fund, _, err := m.GetFundamentalData(ctx, code); err == nil {
		out.Fundamental = fund
	}
	return out, source, nil
}

// GetBatchRealtimeQuotes fetches snapshots for many codes at once. Batch-
// capable sources are preferred and consulted in priority order; chunks run
// concurrently. Codes the upstream cannot resolve map to nil.
func (m *Manager) GetBatchRealtimeQuotes(ctx context.Context, codes []string) (map[string]*market.Quote, string, error) {
	if len(codes) == 0 {
		return map[string]*market.Quote{}, "", nil
	}

	for _, f := range m.candidates() {
		bq, ok := f.(BatchQuoter)
		if !ok {
			continue
		}
		quotes, err := m.batchFrom(ctx, bq, codes)
		if err != nil {
			kind := KindOf(err)
			if kind == KindCancelled {
				return nil, "", err
			}
			if kind == KindRateLimit {
				m.markCooldown(f.Name())
			}
			log.Warn().Str("source", f.Name()).Err(err).Msg("batch quote source failed, trying next")
			metrics.Failovers.WithLabelValues(f.Name()).Inc()
			continue
		}
		return quotes, f.Name(), nil
	}

	// No batch-capable source available; fall back to per-code failover.
	out := make(map[string]*market.Quote, len(codes))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, code := range codes {
		code := code
		g.Go(func() error {
			q, _, err := m.GetRealtimeQuote(gctx, code)
			if err != nil && IsKind(err, KindCancelled) {
				return err
			}
			mu.Lock()
			out[code] = q
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}
	return out, "mixed", nil
}

// batchFrom fans the code list out to one batch-capable source in chunks.
func (m *Manager) batchFrom(ctx context.Context, bq BatchQuoter, codes []string) (map[string]*market.Quote, error) {
	out := make(map[string]*market.Quote, len(codes))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for start := 0; start < len(codes); start += batchChunk {
		end := start + batchChunk
		if end > len(codes) {
			end = len(codes)
		}
		chunk := codes[start:end]
		g.Go(func() error {
			quotes, err := bq.GetBatchRealtimeQuotes(gctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			for code, q := range quotes {
				out[code] = q
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
