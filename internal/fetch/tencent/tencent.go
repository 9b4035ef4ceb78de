// Package tencent is the fast snapshot adapter backed by the Tencent quote
// API (qt.gtimg.cn). Responses are tilde-delimited with ~50 positional
// fields; volume arrives in lots and amount in 万元.
package tencent

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chanscan/chanscan/internal/fetch"
	"github.com/chanscan/chanscan/internal/market"
	"github.com/chanscan/chanscan/internal/market/symbol"
	"github.com/chanscan/chanscan/internal/net/httpx"
	"github.com/chanscan/chanscan/internal/net/pacer"
	"github.com/chanscan/chanscan/internal/net/retry"
)

// Name is the stable source identifier.
const Name = "tencent"

// Positional fields of the tilde-delimited payload.
const (
	fieldName         = 1
	fieldPrice        = 3
	fieldPreClose     = 4
	fieldOpen         = 5
	fieldVolumeLots   = 6
	fieldHigh         = 18
	fieldLow          = 19
	fieldAmountWan    = 21
	fieldChangeAmount = 42
	fieldChangePct    = 43
	fieldTurnover     = 49
	fieldPERatio      = 50
)

// Fetcher implements fetch.Fetcher.
type Fetcher struct {
	baseURL string
	client  *httpx.Client
	pace    pacer.Pacer
	policy  retry.Policy
	quotes  *fetch.TTLCache[*market.Quote]
}

// Option mutates the adapter at construction time.
type Option func(*Fetcher)

// WithEndpoint overrides the quote base URL (tests).
func WithEndpoint(url string) Option {
	return func(f *Fetcher) { f.baseURL = url }
}

// WithPacer overrides the default 100–500ms interval pacer.
func WithPacer(p pacer.Pacer) Option {
	return func(f *Fetcher) { f.pace = p }
}

// New builds the Tencent adapter.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		baseURL: "http://qt.gtimg.cn",
		client:  httpx.New(),
		pace:    pacer.NewInterval(100*time.Millisecond, 500*time.Millisecond),
		policy:  retry.Policy{Attempts: 3, Multiplier: 500 * time.Millisecond, Min: time.Second, Max: 10 * time.Second},
		quotes:  fetch.NewTTLCache[*market.Quote](30 * time.Second),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Name() string      { return Name }
func (f *Fetcher) Priority() float64 { return 0 }

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	var body string
	err := retry.Do(ctx, Name, f.policy, func(ctx context.Context) error {
		if err := f.pace.Wait(ctx); err != nil {
			return fetch.NewError(fetch.KindCancelled, Name, "cancelled while pacing", err)
		}
		text, status, err := f.client.GetText(ctx, url, true, nil)
		if err != nil {
			return fetch.ClassifyHTTP(Name, err)
		}
		if serr := fetch.ClassifyStatus(Name, status); serr != nil {
			return serr
		}
		body = text
		return nil
	})
	return body, err
}

// parseFields splits the `v_shXXXXXX="a~b~c...";` payload into positions.
func parseFields(content string) ([]string, *fetch.Error) {
	if !strings.Contains(content, `="`) {
		return nil, fetch.NewError(fetch.KindParse, Name, "missing payload wrapper", nil)
	}
	data := strings.SplitN(content, `="`, 2)[1]
	data = strings.TrimRight(strings.TrimSpace(data), `";`)
	fields := strings.Split(data, "~")
	if len(fields) < 20 {
		return nil, fetch.NewError(fetch.KindParse, Name, "field count below threshold", nil)
	}
	return fields, nil
}

func quoteFromFields(fields []string, code string) *market.Quote {
	price := fetch.FloatAt(fields, fieldPrice)
	high := fetch.FloatAt(fields, fieldHigh)
	if high == 0 {
		high = price
	}
	low := fetch.FloatAt(fields, fieldLow)
	if low == 0 {
		low = price
	}
	q := &market.Quote{
		Code:         code,
		Name:         fields[fieldName],
		Price:        price,
		PreClose:     fetch.FloatAt(fields, fieldPreClose),
		OpenPrice:    fetch.FloatAt(fields, fieldOpen),
		Volume:       fetch.IntAt(fields, fieldVolumeLots) * 100,
		High:         high,
		Low:          low,
		Amount:       fetch.FloatAt(fields, fieldAmountWan) * 10000,
		ChangeAmount: fetch.FloatAt(fields, fieldChangeAmount),
		ChangePct:    fetch.FloatAt(fields, fieldChangePct),
		TurnoverRate: fetch.FloatAt(fields, fieldTurnover),
		PERatio:      fetch.FloatAt(fields, fieldPERatio),
	}
	q.DeriveFromPreClose()
	return q
}

// GetRealtimeQuote fetches one snapshot, serving repeats from the adapter
// cache within its TTL.
func (f *Fetcher) GetRealtimeQuote(ctx context.Context, code string) (*market.Quote, error) {
	if q, ok := f.quotes.Get(code); ok {
		return q, nil
	}

	sym := symbol.Normalize(code, symbol.Prefixed)
	body, err := f.get(ctx, f.baseURL+"/q="+sym)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(body)
	if content == "" || strings.Contains(content, "pv_none_match") {
		return nil, nil
	}
	fields, perr := parseFields(content)
	if perr != nil {
		return nil, perr
	}
	q := quoteFromFields(fields, code)
	f.quotes.Set(code, q)
	log.Debug().Str("source", Name).Str("code", code).Float64("price", q.Price).Msg("quote fetched")
	return q, nil
}

// GetDailyData serves same-day data only: one synthetic bar built from the
// realtime snapshot. This upstream has no public daily history endpoint, so
// any multi-day request reports empty and the manager fails over to a
// history-capable source.
func (f *Fetcher) GetDailyData(ctx context.Context, code string, days int) (market.Series, error) {
	if days > 1 {
		return nil, fetch.NewError(fetch.KindEmpty, Name, "no history endpoint for multi-day request", nil)
	}
	q, err := f.GetRealtimeQuote(ctx, code)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fetch.NewError(fetch.KindEmpty, Name, "no data for code", nil)
	}
	today := time.Now().Truncate(24 * time.Hour)
	bar := market.Bar{
		Code:   code,
		Date:   today,
		Open:   q.OpenPrice,
		High:   q.High,
		Low:    q.Low,
		Close:  q.Price,
		Volume: q.Volume,
		Amount: q.Amount,
		PctChg: q.ChangePct,
	}
	if err := bar.Validate(); err != nil {
		return nil, fetch.NewError(fetch.KindParse, Name, "inconsistent snapshot bar", err)
	}
	return market.Series{bar}, nil
}

// GetFundamentalData derives what it can from the snapshot: PE only.
func (f *Fetcher) GetFundamentalData(ctx context.Context, code string) (*market.Fundamental, error) {
	q, err := f.GetRealtimeQuote(ctx, code)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return &market.Fundamental{}, nil
	}
	return &market.Fundamental{PERatio: q.PERatio}, nil
}

// GetEnhancedData aggregates quote plus the synthetic daily bar.
func (f *Fetcher) GetEnhancedData(ctx context.Context, code string, days int) (*market.Enhanced, error) {
	return fetch.EnhancedFromParts(ctx, f, code, 1)
}
