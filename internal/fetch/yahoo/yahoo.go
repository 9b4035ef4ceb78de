// Package yahoo is the last-resort adapter backed by the Yahoo Finance v8
// chart API. A-share codes map to .SS / .SZ symbols. The chart payload has
// no turnover amount, so amount is approximated as volume times close, and
// pct_chg is computed from consecutive closes.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chanscan/chanscan/internal/fetch"
	"github.com/chanscan/chanscan/internal/market"
	"github.com/chanscan/chanscan/internal/market/symbol"
	"github.com/chanscan/chanscan/internal/net/httpx"
	"github.com/chanscan/chanscan/internal/net/pacer"
	"github.com/chanscan/chanscan/internal/net/retry"
)

// Name is the stable source identifier.
const Name = "yahoo"

// Fetcher implements fetch.Fetcher.
type Fetcher struct {
	chartURL string
	client   *httpx.Client
	pace     pacer.Pacer
	policy   retry.Policy
	quotes   *fetch.TTLCache[*market.Quote]
}

// Option mutates the adapter at construction time.
type Option func(*Fetcher)

// WithEndpoint overrides the chart base URL (tests).
func WithEndpoint(url string) Option {
	return func(f *Fetcher) { f.chartURL = url }
}

// WithPacer overrides the default 500ms–1s interval pacer.
func WithPacer(p pacer.Pacer) Option {
	return func(f *Fetcher) { f.pace = p }
}

// New builds the Yahoo adapter.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		chartURL: "https://query1.finance.yahoo.com/v8/finance/chart",
		client:   httpx.New(),
		pace:     pacer.NewInterval(500*time.Millisecond, time.Second),
		policy:   retry.Policy{Attempts: 3, Multiplier: time.Second, Min: 2 * time.Second, Max: 30 * time.Second},
		quotes:   fetch.NewTTLCache[*market.Quote](30 * time.Second),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Name() string      { return Name }
func (f *Fetcher) Priority() float64 { return 4 }

// chartResponse mirrors the subset of the v8 payload the adapter reads.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (f *Fetcher) fetchChart(ctx context.Context, code string, days int) (*chartResponse, error) {
	sym := symbol.Normalize(code, symbol.Yahoo)
	url := fmt.Sprintf("%s/%s?interval=1d&range=%dd", f.chartURL, sym, days)

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
	if err != nil {
		return nil, err
	}

	var resp chartResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fetch.NewError(fetch.KindParse, Name, "chart payload is not JSON", err)
	}
	if resp.Chart.Error != nil {
		return nil, fetch.NewError(fetch.KindEmpty, Name, resp.Chart.Error.Description, nil)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fetch.NewError(fetch.KindEmpty, Name, "no chart result", nil)
	}
	return &resp, nil
}

func deref(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func derefInt(vals []*int64, i int) int64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

// GetDailyData fetches daily bars. Null slots (halted sessions) are skipped.
func (f *Fetcher) GetDailyData(ctx context.Context, code string, days int) (market.Series, error) {
	resp, err := f.fetchChart(ctx, code, days)
	if err != nil {
		return nil, err
	}
	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Timestamp) == 0 {
		return nil, fetch.NewError(fetch.KindEmpty, Name, "no quote rows", nil)
	}
	ohlcv := result.Indicators.Quote[0]

	bars := make(market.Series, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		close := deref(ohlcv.Close, i)
		if close == 0 {
			continue
		}
		vol := derefInt(ohlcv.Volume, i)
		bars = append(bars, market.Bar{
			Code:   code,
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   deref(ohlcv.Open, i),
			High:   deref(ohlcv.High, i),
			Low:    deref(ohlcv.Low, i),
			Close:  close,
			Volume: vol,
			Amount: float64(vol) * close,
		})
	}
	if len(bars) == 0 {
		return nil, fetch.NewError(fetch.KindEmpty, Name, "all rows null", nil)
	}
	return bars.Canonicalize(), nil
}

// GetRealtimeQuote builds a snapshot from the chart meta plus the latest bar.
func (f *Fetcher) GetRealtimeQuote(ctx context.Context, code string) (*market.Quote, error) {
	if q, ok := f.quotes.Get(code); ok {
		return q, nil
	}

	resp, err := f.fetchChart(ctx, code, 2)
	if err != nil {
		if fetch.IsKind(err, fetch.KindEmpty) {
			return nil, nil
		}
		return nil, err
	}
	result := resp.Chart.Result[0]
	q := &market.Quote{
		Code:     code,
		Price:    result.Meta.RegularMarketPrice,
		PreClose: result.Meta.PreviousClose,
	}
	if len(result.Indicators.Quote) > 0 && len(result.Timestamp) > 0 {
		ohlcv := result.Indicators.Quote[0]
		i := len(result.Timestamp) - 1
		q.OpenPrice = deref(ohlcv.Open, i)
		q.High = deref(ohlcv.High, i)
		q.Low = deref(ohlcv.Low, i)
		q.Volume = derefInt(ohlcv.Volume, i)
		q.Amount = float64(q.Volume) * q.Price
	}
	q.DeriveFromPreClose()
	f.quotes.Set(code, q)
	return q, nil
}

// GetFundamentalData: the chart API carries no valuation fields.
func (f *Fetcher) GetFundamentalData(ctx context.Context, code string) (*market.Fundamental, error) {
	return &market.Fundamental{}, nil
}

// GetEnhancedData aggregates quote plus bar history.
func (f *Fetcher) GetEnhancedData(ctx context.Context, code string, days int) (*market.Enhanced, error) {
	return fetch.EnhancedFromParts(ctx, f, code, days)
}
