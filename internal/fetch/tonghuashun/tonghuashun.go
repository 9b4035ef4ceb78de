// Package tonghuashun is the secondary snapshot adapter backed by the 10jqka
// quote bridge. The endpoint answers JSONP — one JSON object wrapped in a
// function call — whose data field is a comma-separated daily record. The
// stock name comes from a second endpoint's HTML <title>.
package tonghuashun

import (
	"context"
	"encoding/json"
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
const Name = "tonghuashun"

var (
	jsonpRe = regexp.MustCompile(`\((\{.*\})\)`)
	titleRe = regexp.MustCompile(`<title>([^(<]+)`)
)

// Fetcher implements fetch.Fetcher.
type Fetcher struct {
	lineURL  string
	basicURL string
	client   *httpx.Client
	pace     pacer.Pacer
	policy   retry.Policy
	quotes   *fetch.TTLCache[*market.Quote]
	names    *fetch.TTLCache[string]
}

// Option mutates the adapter at construction time.
type Option func(*Fetcher)

// WithEndpoints overrides the line and basic-info base URLs (tests).
func WithEndpoints(lineURL, basicURL string) Option {
	return func(f *Fetcher) {
		f.lineURL = lineURL
		f.basicURL = basicURL
	}
}

// WithPacer overrides the default 200–600ms interval pacer.
func WithPacer(p pacer.Pacer) Option {
	return func(f *Fetcher) { f.pace = p }
}

// New builds the Tonghuashun adapter.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		lineURL:  "http://d.10jqka.com.cn/v6/line",
		basicURL: "http://basic.10jqka.com.cn",
		client:   httpx.New(),
		pace:     pacer.NewInterval(200*time.Millisecond, 600*time.Millisecond),
		policy:   retry.Policy{Attempts: 3, Multiplier: 500 * time.Millisecond, Min: time.Second, Max: 10 * time.Second},
		quotes:   fetch.NewTTLCache[*market.Quote](30 * time.Second),
		names:    fetch.NewTTLCache[string](time.Hour),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Name() string      { return Name }
func (f *Fetcher) Priority() float64 { return 0.5 }

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

// dailyRecord is the comma-separated payload inside the JSONP data field:
// date, open, close, high, low, volume (lots), amount (万元), pct_chg.
type dailyRecord struct {
	date   time.Time
	open   float64
	close  float64
	high   float64
	low    float64
	volume int64
	amount float64
	pctChg float64
}

func parseDaily(content string) (*dailyRecord, *fetch.Error) {
	m := jsonpRe.FindStringSubmatch(content)
	if m == nil {
		return nil, fetch.NewError(fetch.KindParse, Name, "missing JSONP wrapper", nil)
	}
	var payload struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal([]byte(m[1]), &payload); err != nil {
		return nil, fetch.NewError(fetch.KindParse, Name, "JSONP body is not JSON", err)
	}
	if payload.Data == "" {
		return nil, fetch.NewError(fetch.KindEmpty, Name, "empty data field", nil)
	}
	fields := strings.Split(payload.Data, ",")
	if len(fields) < 8 {
		return nil, fetch.NewError(fetch.KindParse, Name, "field count below threshold", nil)
	}

	date, err := time.Parse("20060102", fields[0])
	if err != nil {
		if date, err = time.Parse(market.DateLayout, fields[0]); err != nil {
			return nil, fetch.NewError(fetch.KindParse, Name, "unparseable record date", err)
		}
	}
	rec := &dailyRecord{
		date:   date,
		open:   fetch.FloatAt(fields, 1),
		close:  fetch.FloatAt(fields, 2),
		high:   fetch.FloatAt(fields, 3),
		low:    fetch.FloatAt(fields, 4),
		volume: fetch.IntAt(fields, 5) * 100,
		amount: fetch.FloatAt(fields, 6) * 10000,
		pctChg: fetch.FloatAt(fields, 7),
	}
	if rec.high == 0 {
		rec.high = rec.close
	}
	if rec.low == 0 {
		rec.low = rec.close
	}
	return rec, nil
}

func (f *Fetcher) fetchDaily(ctx context.Context, code string) (*dailyRecord, error) {
	sym := symbol.Normalize(code, symbol.Tonghuashun)
	body, err := f.get(ctx, f.lineURL+"/"+sym+"/01/last.js")
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(body)
	if content == "" || strings.Contains(content, "null") || len(content) < 10 {
		return nil, fetch.NewError(fetch.KindEmpty, Name, "no data for code", nil)
	}
	rec, perr := parseDaily(content)
	if perr != nil {
		return nil, perr
	}
	return rec, nil
}

// StockName resolves the display name from the basic-info page title,
// cached for an hour.
func (f *Fetcher) StockName(ctx context.Context, code string) string {
	if name, ok := f.names.Get(code); ok {
		return name
	}
	bare := symbol.Strip(code)
	body, err := f.get(ctx, f.basicURL+"/"+bare+"/")
	if err != nil {
		log.Debug().Str("source", Name).Str("code", code).Err(err).Msg("name lookup failed")
		return ""
	}
	m := titleRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	name := strings.TrimSpace(m[1])
	f.names.Set(code, name)
	return name
}

// GetRealtimeQuote builds a snapshot from the latest daily record.
func (f *Fetcher) GetRealtimeQuote(ctx context.Context, code string) (*market.Quote, error) {
	if q, ok := f.quotes.Get(code); ok {
		return q, nil
	}

	rec, err := f.fetchDaily(ctx, code)
	if err != nil {
		if fetch.IsKind(err, fetch.KindEmpty) {
			return nil, nil
		}
		return nil, err
	}
	q := &market.Quote{
		Code:      code,
		Name:      f.StockName(ctx, code),
		Price:     rec.close,
		ChangePct: rec.pctChg,
		Volume:    rec.volume,
		Amount:    rec.amount,
		High:      rec.high,
		Low:       rec.low,
		OpenPrice: rec.open,
	}
	f.quotes.Set(code, q)
	return q, nil
}

// GetDailyData returns the latest daily record as a single canonical bar.
// The quote bridge only exposes the last record, so any multi-day request
// reports empty and the manager fails over to a history-capable source.
func (f *Fetcher) GetDailyData(ctx context.Context, code string, days int) (market.Series, error) {
	if days > 1 {
		return nil, fetch.NewError(fetch.KindEmpty, Name, "only the latest record is served", nil)
	}
	rec, err := f.fetchDaily(ctx, code)
	if err != nil {
		return nil, err
	}
	bar := market.Bar{
		Code:   code,
		Date:   rec.date,
		Open:   rec.open,
		High:   rec.high,
		Low:    rec.low,
		Close:  rec.close,
		Volume: rec.volume,
		Amount: rec.amount,
		PctChg: rec.pctChg,
	}
	if err := bar.Validate(); err != nil {
		return nil, fetch.NewError(fetch.KindParse, Name, "inconsistent daily record", err)
	}
	return market.Series{bar}, nil
}

// GetFundamentalData: the quote bridge carries no valuation fields.
func (f *Fetcher) GetFundamentalData(ctx context.Context, code string) (*market.Fundamental, error) {
	return &market.Fundamental{}, nil
}

// GetEnhancedData aggregates the snapshot and the single-day record.
func (f *Fetcher) GetEnhancedData(ctx context.Context, code string, days int) (*market.Enhanced, error) {
	return fetch.EnhancedFromParts(ctx, f, code, 1)
}
