package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanscan/chanscan/internal/market"
)

type stubFetcher struct {
	name     string
	priority float64
	calls    int
	bars     market.Series
	quote    *market.Quote
	err      error
}

func (s *stubFetcher) Name() string      { return s.name }
func (s *stubFetcher) Priority() float64 { return s.priority }

func (s *stubFetcher) GetDailyData(ctx context.Context, code string, days int) (market.Series, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.bars, nil
}

func (s *stubFetcher) GetRealtimeQuote(ctx context.Context, code string) (*market.Quote, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.quote, nil
}

func (s *stubFetcher) GetFundamentalData(ctx context.Context, code string) (*market.Fundamental, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &market.Fundamental{PERatio: 12}, nil
}

func (s *stubFetcher) GetEnhancedData(ctx context.Context, code string, days int) (*market.Enhanced, error) {
	return EnhancedFromParts(ctx, s, code, days)
}

func day(s string) time.Time {
	t, _ := time.Parse(market.DateLayout, s)
	return t
}

func sampleBars(code string) market.Series {
	return market.Series{
		{Code: code, Date: day("2024-01-02"), Open: 10, High: 11, Low: 9.5, Close: 10.5, Volume: 1000, Amount: 10500},
		{Code: code, Date: day("2024-01-03"), Open: 10.5, High: 12, Low: 10.2, Close: 11.8, Volume: 1200, Amount: 14160},
	}
}

func TestFailoverSkipsRateLimitedSourceWithoutRetry(t *testing.T) {
	a := &stubFetcher{name: "a", priority: 0, err: NewError(KindRateLimit, "a", "throttled", nil)}
	b := &stubFetcher{name: "b", priority: 1, bars: sampleBars("600519")}
	m := NewManager([]Fetcher{a, b})

	bars, source, err := m.GetDailyData(context.Background(), "600519", 60)
	require.NoError(t, err)
	assert.Equal(t, "b", source)
	assert.Len(t, bars, 2)
	assert.Equal(t, 1, a.calls, "rate-limited source must not be retried")
	assert.Equal(t, 1, b.calls)
	assert.True(t, m.CoolingDown("a"))
}

func TestCooldownSkipsSourceOnSubsequentCalls(t *testing.T) {
	a := &stubFetcher{name: "a", priority: 0, err: NewError(KindRateLimit, "a", "throttled", nil)}
	b := &stubFetcher{name: "b", priority: 1, bars: sampleBars("000001")}
	m := NewManager([]Fetcher{a, b}, WithCacheTTLs(time.Nanosecond, time.Nanosecond))

	_, _, err := m.GetDailyData(context.Background(), "000001", 30)
	require.NoError(t, err)
	_, _, err = m.GetDailyData(context.Background(), "000001", 30)
	require.NoError(t, err)

	assert.Equal(t, 1, a.calls, "cooling source must be skipped entirely")
	assert.Equal(t, 2, b.calls)
}

func TestPriorityOrdering(t *testing.T) {
	low := &stubFetcher{name: "low", priority: 4, bars: sampleBars("600519")}
	high := &stubFetcher{name: "high", priority: 0.1, bars: sampleBars("600519")}
	m := NewManager([]Fetcher{low, high})

	assert.Equal(t, []string{"high", "low"}, m.Sources())

	_, source, err := m.GetDailyData(context.Background(), "600519", 10)
	require.NoError(t, err)
	assert.Equal(t, "high", source)
	assert.Equal(t, 0, low.calls)
}

// snapshotStub mimics the snapshot-only adapters: one same-day bar for
// single-day requests, empty for anything deeper.
type snapshotStub struct {
	stubFetcher
}

func (s *snapshotStub) GetDailyData(ctx context.Context, code string, days int) (market.Series, error) {
	s.calls++
	if days > 1 {
		return nil, NewError(KindEmpty, s.name, "no history endpoint for multi-day request", nil)
	}
	return s.bars[:1], nil
}

func TestDailyFailoverPastSnapshotOnlySource(t *testing.T) {
	snap := &snapshotStub{stubFetcher{name: "snap", priority: 0, bars: sampleBars("600519")}}
	deep := &stubFetcher{name: "deep", priority: 1, bars: sampleBars("600519")}
	m := NewManager([]Fetcher{snap, deep})

	bars, source, err := m.GetDailyData(context.Background(), "600519", 120)
	require.NoError(t, err)
	assert.Equal(t, "deep", source, "history request must not stop at a snapshot-only source")
	assert.Len(t, bars, 2)
	assert.Equal(t, 1, snap.calls)
	assert.Equal(t, 1, deep.calls)

	// Single-day requests still go to the top of the order.
	bars, source, err = m.GetDailyData(context.Background(), "600519", 1)
	require.NoError(t, err)
	assert.Equal(t, "snap", source)
	assert.Len(t, bars, 1)
}

func TestAllSourcesExhausted(t *testing.T) {
	a := &stubFetcher{name: "a", priority: 0, err: NewError(KindParse, "a", "bad shape", nil)}
	b := &stubFetcher{name: "b", priority: 1, err: NewError(KindEmpty, "b", "no rows", nil)}
	m := NewManager([]Fetcher{a, b})

	_, _, err := m.GetDailyData(context.Background(), "600519", 60)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindExhausted))
}

func TestNotConfiguredDisablesForSession(t *testing.T) {
	a := &stubFetcher{name: "a", priority: 0, err: NewError(KindNotConfigured, "a", "no token", nil)}
	b := &stubFetcher{name: "b", priority: 1, bars: sampleBars("600519")}
	m := NewManager([]Fetcher{a, b}, WithCacheTTLs(time.Nanosecond, time.Nanosecond))

	_, _, err := m.GetDailyData(context.Background(), "600519", 60)
	require.NoError(t, err)
	_, _, err = m.GetDailyData(context.Background(), "600519", 60)
	require.NoError(t, err)

	assert.Equal(t, 1, a.calls, "unconfigured source consulted at most once")
}

func TestDailyCacheReadThrough(t *testing.T) {
	a := &stubFetcher{name: "a", priority: 0, bars: sampleBars("600519")}
	m := NewManager([]Fetcher{a})

	_, source1, err := m.GetDailyData(context.Background(), "600519", 60)
	require.NoError(t, err)
	assert.Equal(t, "a", source1)

	_, source2, err := m.GetDailyData(context.Background(), "600519", 60)
	require.NoError(t, err)
	assert.Equal(t, "cache", source2)
	assert.Equal(t, 1, a.calls)

	// Different days key misses the cache.
	_, source3, err := m.GetDailyData(context.Background(), "600519", 30)
	require.NoError(t, err)
	assert.Equal(t, "a", source3)
}

func TestCancelledPropagatesImmediately(t *testing.T) {
	a := &stubFetcher{name: "a", priority: 0, bars: sampleBars("600519")}
	m := NewManager([]Fetcher{a})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := m.GetDailyData(ctx, "600519", 60)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindCancelled))
	assert.Equal(t, 0, a.calls)
}

func TestQuoteFailover(t *testing.T) {
	a := &stubFetcher{name: "a", priority: 0, err: NewError(KindTransport, "a", "refused", nil)}
	b := &stubFetcher{name: "b", priority: 1, quote: &market.Quote{Code: "600519", Price: 1700}}
	m := NewManager([]Fetcher{a, b})

	q, source, err := m.GetRealtimeQuote(context.Background(), "600519")
	require.NoError(t, err)
	assert.Equal(t, "b", source)
	assert.Equal(t, 1700.0, q.Price)
}

type batchStub struct {
	stubFetcher
	batchCalls int
	batchSizes []int
}

func (b *batchStub) GetBatchRealtimeQuotes(ctx context.Context, codes []string) (map[string]*market.Quote, error) {
	b.batchCalls++
	b.batchSizes = append(b.batchSizes, len(codes))
	out := make(map[string]*market.Quote, len(codes))
	for _, c := range codes {
		out[c] = &market.Quote{Code: c, Price: 1}
	}
	return out, nil
}

func TestBatchQuotesPrefersBatchCapableSource(t *testing.T) {
	plain := &stubFetcher{name: "plain", priority: 0, quote: &market.Quote{Code: "x"}}
	batch := &batchStub{stubFetcher: stubFetcher{name: "batch", priority: 1}}
	m := NewManager([]Fetcher{plain, batch})

	codes := []string{"600519", "000001", "300750"}
	quotes, source, err := m.GetBatchRealtimeQuotes(context.Background(), codes)
	require.NoError(t, err)
	assert.Equal(t, "batch", source)
	assert.Len(t, quotes, 3)
	assert.Equal(t, 1, batch.batchCalls)
	assert.Equal(t, 0, plain.calls)
}

func TestBatchQuotesChunksLargeRequests(t *testing.T) {
	batch := &batchStub{stubFetcher: stubFetcher{name: "batch", priority: 0}}
	m := NewManager([]Fetcher{batch})

	codes := make([]string, 1000)
	for i := range codes {
		codes[i] = "600000"
	}
	_, _, err := m.GetBatchRealtimeQuotes(context.Background(), codes)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.batchCalls)
	assert.ElementsMatch(t, []int{800, 200}, batch.batchSizes)
}
