// Package sina is the ultra-fast snapshot adapter backed by the Sina Finance
// quote API. It answers in milliseconds, takes up to 800 codes per request,
// and also exposes a historical K-line endpoint.
package sina

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
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
const Name = "sina"

// referer is required by hq.sinajs.cn; requests without it are rejected.
const referer = "https://finance.sina.com.cn/"

var quoteRe = regexp.MustCompile(`="([^"]*)"`)

// Fetcher implements fetch.Fetcher and fetch.BatchQuoter.
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

// WithPacer overrides the default 50–200ms interval pacer.
func WithPacer(p pacer.Pacer) Option {
	return func(f *Fetcher) { f.pace = p }
}

// WithClient overrides the shared HTTP client.
func WithClient(c *httpx.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// New builds the Sina adapter.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		quoteURL: "http://hq.sinajs.cn",
		klineURL: "http://money.finance.sina.com.cn/quotes_service/api/json_v2.php/CN_MarketData.getKLineData",
		client:   httpx.New(WithTimeoutOpt()),
		pace:     pacer.NewInterval(50*time.Millisecond, 200*time.Millisecond),
		policy:   retry.Policy{Attempts: 3, Multiplier: 300 * time.Millisecond, Min: 500 * time.Millisecond, Max: 5 * time.Second},
		quotes:   fetch.NewTTLCache[*market.Quote](30 * time.Second),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithTimeoutOpt is the default 5s per-call timeout for this upstream.
func WithTimeoutOpt() httpx.Option {
	return httpx.WithTimeout(5 * time.Second)
}

func (f *Fetcher) Name() string      { return Name }
func (f *Fetcher) Priority() float64 { return 0.1 }

// get runs one paced, retried GET and returns the body.
func (f *Fetcher) get(ctx context.Context, url string, gbk bool) (string, error) {
	var body string
	err := retry.Do(ctx, Name, f.policy, func(ctx context.Context) error {
		if err := f.pace.Wait(ctx); err != nil {
			return fetch.NewError(fetch.KindCancelled, Name, "cancelled while pacing", err)
		}
		start := time.Now()
		text, status, err := f.client.GetText(ctx, url, gbk, map[string]string{"Referer": referer})
		if err != nil {
			return fetch.ClassifyHTTP(Name, err)
		}
		if serr := fetch.ClassifyStatus(Name, status); serr != nil {
			return serr
		}
		if fetch.LooksRateLimited(text) && len(text) < 200 {
			return fetch.NewError(fetch.KindRateLimit, Name, "ban keyword in response", nil)
		}
		log.Debug().Str("source", Name).Dur("elapsed", time.Since(start)).Msg("api call done")
		body = text
		return nil
	})
	return body, err
}

// parseQuoteLine decodes one `var hq_str_...="...";` line. A missing or
// too-short payload yields a nil quote.
//
// Positions: 0 name, 1 open, 2 pre_close, 3 last, 4 high, 5 low, 8 volume
// (shares), 9 amount (yuan), 30 date, 31 time.
func parseQuoteLine(line, code string) *market.Quote {
	m := quoteRe.FindStringSubmatch(line)
	if m == nil || m[1] == "" {
		return nil
	}
	fields := strings.Split(m[1], ",")
	if len(fields) < 32 {
		return nil
	}
	q := &market.Quote{
		Code:      code,
		Name:      fields[0],
		OpenPrice: fetch.FloatAt(fields, 1),
		PreClose:  fetch.FloatAt(fields, 2),
		Price:     fetch.FloatAt(fields, 3),
		High:      fetch.FloatAt(fields, 4),
		Low:       fetch.FloatAt(fields, 5),
		Volume:    fetch.IntAt(fields, 8),
		Amount:    fetch.FloatAt(fields, 9),
	}
	q.DeriveFromPreClose()
	return q
}

// GetRealtimeQuote fetches one snapshot, serving repeats from the adapter
// cache within its TTL.
func (f *Fetcher) GetRealtimeQuote(ctx context.Context, code string) (*market.Quote, error) {
	if q, ok := f.quotes.Get(code); ok {
		log.Debug().Str("source", Name).Str("code", code).Msg("quote cache hit")
		return q, nil
	}

	sym := symbol.Normalize(code, symbol.Prefixed)
	body, err := f.get(ctx, f.quoteURL+"/list="+sym, true)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(body)
	if content == "" || strings.Contains(content, "null") || len(content) < 10 {
		return nil, nil
	}
	q := parseQuoteLine(content, code)
	if q == nil {
		return nil, fetch.NewError(fetch.KindParse, Name, "unexpected quote payload", nil)
	}
	f.quotes.Set(code, q)
	return q, nil
}

// GetBatchRealtimeQuotes fetches up to 800 codes in a single request. Codes
// the upstream does not know map to nil.
func (f *Fetcher) GetBatchRealtimeQuotes(ctx context.Context, codes []string) (map[string]*market.Quote, error) {
	out := make(map[string]*market.Quote, len(codes))
	if len(codes) == 0 {
		return out, nil
	}

	syms := make([]string, len(codes))
	for i, c := range codes {
		syms[i] = symbol.Normalize(c, symbol.Prefixed)
	}
	body, err := f.get(ctx, f.quoteURL+"/list="+strings.Join(syms, ","), true)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(body), "\n")
	for i, line := range lines {
		if i >= len(codes) {
			break
		}
		out[codes[i]] = parseQuoteLine(line, codes[i])
	}
	for _, c := range codes {
		if _, ok := out[c]; !ok {
			out[c] = nil
		}
	}
	ok := 0
	for _, q := range out {
		if q != nil {
			ok++
		}
	}
	log.Info().Str("source", Name).Int("requested", len(codes)).Int("resolved", ok).Msg("batch quotes fetched")
	return out, nil
}

// GetDailyData fetches daily K-lines. The endpoint answers a JSON array of
// {day, open, high, low, close, volume}; amount is not provided and pct_chg
// is computed from consecutive closes.
func (f *Fetcher) GetDailyData(ctx context.Context, code string, days int) (market.Series, error) {
	sym := symbol.Normalize(code, symbol.Prefixed)
	url := fmt.Sprintf("%s?symbol=%s&scale=240&ma=no&datalen=%d", f.klineURL, sym, days)
	body, err := f.get(ctx, url, false)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(body)
	if content == "" || content == "null" || len(content) < 10 {
		return nil, fetch.NewError(fetch.KindEmpty, Name, "no k-line rows", nil)
	}

	var rows []map[string]any
	if err := json.Unmarshal([]byte(content), &rows); err != nil {
		return nil, fetch.NewError(fetch.KindParse, Name, "k-line payload is not a JSON array", err)
	}
	if len(rows) == 0 {
		return nil, fetch.NewError(fetch.KindEmpty, Name, "empty k-line array", nil)
	}

	bars := make(market.Series, 0, len(rows))
	for _, row := range rows {
		day, _ := row["day"].(string)
		date, err := time.Parse(market.DateLayout, day)
		if err != nil {
			log.Warn().Str("source", Name).Str("day", day).Msg("skipping unparseable k-line row")
			continue
		}
		bars = append(bars, market.Bar{
			Code:   code,
			Date:   date,
			Open:   fetch.AsFloat(row["open"]),
			High:   fetch.AsFloat(row["high"]),
			Low:    fetch.AsFloat(row["low"]),
			Close:  fetch.AsFloat(row["close"]),
			Volume: int64(fetch.AsFloat(row["volume"])),
		})
	}
	if len(bars) == 0 {
		return nil, fetch.NewError(fetch.KindParse, Name, "no parseable k-line rows", nil)
	}
	return bars.Canonicalize(), nil
}

// GetFundamentalData: this upstream carries no valuation fields; everything
// stays zero-as-unknown.
func (f *Fetcher) GetFundamentalData(ctx context.Context, code string) (*market.Fundamental, error) {
	return &market.Fundamental{}, nil
}

// GetEnhancedData aggregates quote plus a short bar history.
func (f *Fetcher) GetEnhancedData(ctx context.Context, code string, days int) (*market.Enhanced, error) {
	return fetch.EnhancedFromParts(ctx, f, code, days)
}
