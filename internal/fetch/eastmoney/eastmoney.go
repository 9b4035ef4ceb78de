// Package eastmoney is the deep-history adapter backed by the Eastmoney
// push2 APIs. It serves long daily K-line ranges, realtime snapshots with
// valuation fields, and is the primary fundamentals source among the
// token-free upstreams.
package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
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
const Name = "eastmoney"

// Snapshot field identifiers of the push2 stock/get endpoint. With fltt=2
// the upstream answers plain decimals; absent values arrive as "-".
const (
	quoteFields = "f43,f44,f45,f46,f47,f48,f57,f58,f60,f116,f117,f162,f167,f168,f170,f171"
	klineFields = "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61"
)

// Fetcher implements fetch.Fetcher.
type Fetcher struct {
	quoteURL string
	klineURL string
	client   *httpx.Client
	pace     pacer.Pacer
	policy   retry.Policy
	quotes   *fetch.TTLCache[*market.Quote]
}

// Option mutates the adapter at construction time.
type Option func(*Fetcher)

// WithEndpoints overrides the quote and K-line base URLs (tests).
func WithEndpoints(quoteURL, klineURL string) Option {
	return func(f *Fetcher) {
		f.quoteURL = quoteURL
		f.klineURL = klineURL
	}
}

// WithPacer overrides the default 200–500ms interval pacer.
func WithPacer(p pacer.Pacer) Option {
	return func(f *Fetcher) { f.pace = p }
}

// New builds the Eastmoney adapter.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		quoteURL: "http://push2.eastmoney.com/api/qt/stock/get",
		klineURL: "http://push2his.eastmoney.com/api/qt/stock/kline/get",
		client:   httpx.New(),
		pace:     pacer.NewInterval(200*time.Millisecond, 500*time.Millisecond),
		policy:   retry.Policy{Attempts: 3, Multiplier: time.Second, Min: 2 * time.Second, Max: 30 * time.Second},
		quotes:   fetch.NewTTLCache[*market.Quote](30 * time.Second),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Name() string      { return Name }
func (f *Fetcher) Priority() float64 { return 1 }

// secID maps a bare code to the push2 security id: market 1 for Shanghai,
// 0 for Shenzhen.
func secID(code string) string {
	bare := symbol.Strip(code)
	if symbol.MarketOf(bare) == symbol.Shanghai {
		return "1." + bare
	}
	return "0." + bare
}

func (f *Fetcher) get(ctx context.Context, url string) (string, error) {
	var body string
	err := retry.Do(ctx, Name, f.policy, func(ctx context.Context) error {
		if err := f.pace.Wait(ctx); err != nil {
			return fetch.NewError(fetch.KindCancelled, Name, "cancelled while pacing", err)
		}
		text, status, err := f.client.GetText(ctx, url, false, nil)
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

// fetchSnapshot pulls the raw field map for one code. A null data object
// means the upstream does not know the code.
func (f *Fetcher) fetchSnapshot(ctx context.Context, code string) (map[string]any, error) {
	url := fmt.Sprintf("%s?secid=%s&fltt=2&invt=2&fields=%s", f.quoteURL, secID(code), quoteFields)
	body, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fetch.NewError(fetch.KindParse, Name, "snapshot payload is not JSON", err)
	}
	return payload.Data, nil
}

func quoteFromSnapshot(data map[string]any, code string) *market.Quote {
	name, _ := data["f58"].(string)
	q := &market.Quote{
		Code:          code,
		Name:          name,
		Price:         fetch.AsFloat(data["f43"]),
		High:          fetch.AsFloat(data["f44"]),
		Low:           fetch.AsFloat(data["f45"]),
		OpenPrice:     fetch.AsFloat(data["f46"]),
		Volume:        int64(fetch.AsFloat(data["f47"])) * 100,
		Amount:        fetch.AsFloat(data["f48"]),
		PreClose:      fetch.AsFloat(data["f60"]),
		TotalMV:       fetch.AsFloat(data["f116"]),
		CirculationMV: fetch.AsFloat(data["f117"]),
		PERatio:       fetch.AsFloat(data["f162"]),
		PBRatio:       fetch.AsFloat(data["f167"]),
		TurnoverRate:  fetch.AsFloat(data["f168"]),
		ChangePct:     fetch.AsFloat(data["f170"]),
		Amplitude:     fetch.AsFloat(data["f171"]),
	}
	q.DeriveFromPreClose()
	return q
}

// GetRealtimeQuote fetches one snapshot, serving repeats from the adapter
// cache within its TTL. Unknown codes yield a nil quote.
func (f *Fetcher) GetRealtimeQuote(ctx context.Context, code string) (*market.Quote, error) {
	if q, ok := f.quotes.Get(code); ok {
		return q, nil
	}
	data, err := f.fetchSnapshot(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	q := quoteFromSnapshot(data, code)
	f.quotes.Set(code, q)
	return q, nil
}

// GetDailyData fetches forward-adjusted daily K-lines. Each row is a
// comma-separated record: date, open, close, high, low, volume (lots),
// amount (yuan), amplitude, pct_chg, change, turnover.
func (f *Fetcher) GetDailyData(ctx context.Context, code string, days int) (market.Series, error) {
	url := fmt.Sprintf("%s?secid=%s&fields1=f1,f2,f3,f4,f5,f6&fields2=%s&klt=101&fqt=1&end=20500101&lmt=%d",
		f.klineURL, secID(code), klineFields, days)
	body, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data *struct {
			Klines []string `json:"klines"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fetch.NewError(fetch.KindParse, Name, "k-line payload is not JSON", err)
	}
	if payload.Data == nil || len(payload.Data.Klines) == 0 {
		return nil, fetch.NewError(fetch.KindEmpty, Name, "no k-line rows", nil)
	}

	bars := make(market.Series, 0, len(payload.Data.Klines))
	for _, row := range payload.Data.Klines {
		fields := strings.Split(row, ",")
		if len(fields) < 9 {
			continue
		}
		date, err := time.Parse(market.DateLayout, fields[0])
		if err != nil {
			log.Warn().Str("source", Name).Str("row", fields[0]).Msg("skipping unparseable k-line row")
			continue
		}
		bars = append(bars, market.Bar{
			Code:   code,
			Date:   date,
			Open:   fetch.FloatAt(fields, 1),
			Close:  fetch.FloatAt(fields, 2),
			High:   fetch.FloatAt(fields, 3),
			Low:    fetch.FloatAt(fields, 4),
			Volume: fetch.IntAt(fields, 5) * 100,
			Amount: fetch.FloatAt(fields, 6),
			PctChg: fetch.FloatAt(fields, 8),
		})
	}
	if len(bars) == 0 {
		return nil, fetch.NewError(fetch.KindParse, Name, "no parseable k-line rows", nil)
	}
	return bars.Canonicalize(), nil
}

// GetFundamentalData derives valuation from the snapshot fields.
func (f *Fetcher) GetFundamentalData(ctx context.Context, code string) (*market.Fundamental, error) {
	q, err := f.GetRealtimeQuote(ctx, code)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return &market.Fundamental{}, nil
	}
	return &market.Fundamental{
		PERatio: q.PERatio,
		PBRatio: q.PBRatio,
		TotalMV: q.TotalMV,
		CircMV:  q.CirculationMV,
	}, nil
}

// GetEnhancedData aggregates quote, history and fundamentals.
func (f *Fetcher) GetEnhancedData(ctx context.Context, code string, days int) (*market.Enhanced, error) {
	return fetch.EnhancedFromParts(ctx, f, code, days)
}
