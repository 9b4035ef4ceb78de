// Package tushare is the token-authenticated adapter backed by the Tushare
// Pro API. One POST endpoint serves every dataset, selected by api_name;
// responses are column-name + row-array tables. Free tokens are budgeted
// per minute, so this adapter carries a calls-per-minute pacer instead of
// an interval one.
package tushare

import (
	"context"
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
const Name = "tushare"

const dateLayout = "20060102"

// Fetcher implements fetch.Fetcher.
type Fetcher struct {
	apiURL string
	token  string
	client *httpx.Client
	pace   pacer.Pacer
	policy retry.Policy
	quotes *fetch.TTLCache[*market.Quote]
}

// Option mutates the adapter at construction time.
type Option func(*Fetcher)

// WithEndpoint overrides the API URL (tests).
func WithEndpoint(url string) Option {
	return func(f *Fetcher) { f.apiURL = url }
}

// WithToken sets the API token. Without one the adapter reports
// not-configured and the manager skips it for the session.
func WithToken(tok string) Option {
	return func(f *Fetcher) { f.token = tok }
}

// WithPacer overrides the default 80 calls/minute budget pacer.
func WithPacer(p pacer.Pacer) Option {
	return func(f *Fetcher) { f.pace = p }
}

// New builds the Tushare adapter.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		apiURL: "http://api.tushare.pro",
		client: httpx.New(),
		pace:   pacer.NewBudget(80),
		policy: retry.Policy{Attempts: 3, Multiplier: time.Second, Min: 2 * time.Second, Max: 30 * time.Second},
		quotes: fetch.NewTTLCache[*market.Quote](30 * time.Second),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Name() string      { return Name }
func (f *Fetcher) Priority() float64 { return 2 }

// table is the decoded data block: column names plus row arrays.
type table struct {
	Fields []string `json:"fields"`
	Items  [][]any  `json:"items"`
}

// col returns the index of a column name, -1 when absent.
func (t *table) col(name string) int {
	for i, f := range t.Fields {
		if f == name {
			return i
		}
	}
	return -1
}

func (t *table) floatAt(row []any, name string) float64 {
	i := t.col(name)
	if i < 0 || i >= len(row) {
		return 0
	}
	return fetch.AsFloat(row[i])
}

func (t *table) stringAt(row []any, name string) string {
	i := t.col(name)
	if i < 0 || i >= len(row) {
		return ""
	}
	s, _ := row[i].(string)
	return s
}

// query runs one api_name call. Non-zero upstream codes with quota wording
// classify as rate-limit so the manager cools the source down.
func (f *Fetcher) query(ctx context.Context, apiName string, params map[string]string, fields string) (*table, error) {
	if f.token == "" {
		return nil, fetch.NewError(fetch.KindNotConfigured, Name, "no API token", nil)
	}

	req := map[string]any{
		"api_name": apiName,
		"token":    f.token,
		"params":   params,
		"fields":   fields,
	}
	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data *table `json:"data"`
	}
	err := retry.Do(ctx, Name, f.policy, func(ctx context.Context) error {
		if err := f.pace.Wait(ctx); err != nil {
			return fetch.NewError(fetch.KindCancelled, Name, "cancelled while pacing", err)
		}
		status, err := f.client.PostJSON(ctx, f.apiURL, req, &resp)
		if err != nil {
			return fetch.ClassifyHTTP(Name, err)
		}
		if serr := fetch.ClassifyStatus(Name, status); serr != nil {
			return serr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resp.Code != 0 {
		if fetch.LooksRateLimited(resp.Msg) || strings.Contains(resp.Msg, "每分钟") || strings.Contains(resp.Msg, "积分") {
			return nil, fetch.NewError(fetch.KindRateLimit, Name, resp.Msg, nil)
		}
		return nil, fetch.NewError(fetch.KindTransport, Name, fmt.Sprintf("upstream code %d: %s", resp.Code, resp.Msg), nil)
	}
	if resp.Data == nil || len(resp.Data.Items) == 0 {
		return nil, fetch.NewError(fetch.KindEmpty, Name, "no rows for "+apiName, nil)
	}
	return resp.Data, nil
}

// GetDailyData fetches the daily dataset. Rows arrive newest-first with
// volume in lots and amount in thousand yuan.
func (f *Fetcher) GetDailyData(ctx context.Context, code string, days int) (market.Series, error) {
	tsCode := symbol.Normalize(code, symbol.TuShare)
	end := time.Now()
	// Calendar span padded for weekends and holidays.
	start := end.AddDate(0, 0, -(days*7/5 + 10))

	tbl, err := f.query(ctx, "daily", map[string]string{
		"ts_code":    tsCode,
		"start_date": start.Format(dateLayout),
		"end_date":   end.Format(dateLayout),
	}, "ts_code,trade_date,open,high,low,close,pct_chg,vol,amount")
	if err != nil {
		return nil, err
	}

	bars := make(market.Series, 0, len(tbl.Items))
	for _, row := range tbl.Items {
		date, err := time.Parse(dateLayout, tbl.stringAt(row, "trade_date"))
		if err != nil {
			log.Warn().Str("source", Name).Msg("skipping row with unparseable trade_date")
			continue
		}
		bars = append(bars, market.Bar{
			Code:   code,
			Date:   date,
			Open:   tbl.floatAt(row, "open"),
			High:   tbl.floatAt(row, "high"),
			Low:    tbl.floatAt(row, "low"),
			Close:  tbl.floatAt(row, "close"),
			Volume: int64(tbl.floatAt(row, "vol")) * 100,
			Amount: tbl.floatAt(row, "amount") * 1000,
			PctChg: tbl.floatAt(row, "pct_chg"),
		})
	}
	if len(bars) == 0 {
		return nil, fetch.NewError(fetch.KindParse, Name, "no parseable daily rows", nil)
	}
	return bars.Canonicalize().Tail(days), nil
}

// GetRealtimeQuote approximates a snapshot from the latest daily row plus
// the daily_basic valuation row. Data lags realtime by up to one session.
func (f *Fetcher) GetRealtimeQuote(ctx context.Context, code string) (*market.Quote, error) {
	if q, ok := f.quotes.Get(code); ok {
		return q, nil
	}

	bars, err := f.GetDailyData(ctx, code, 2)
	if err != nil {
		return nil, err
	}
	last := bars[len(bars)-1]
	q := &market.Quote{
		Code:      code,
		Price:     last.Close,
		OpenPrice: last.Open,
		High:      last.High,
		Low:       last.Low,
		Volume:    last.Volume,
		Amount:    last.Amount,
		ChangePct: last.PctChg,
	}
	if len(bars) > 1 {
		q.PreClose = bars[len(bars)-2].Close
		q.DeriveFromPreClose()
	}

	if fund, ferr := f.GetFundamentalData(ctx, code); ferr == nil {
		q.PERatio = fund.PERatio
		q.PBRatio = fund.PBRatio
		q.TotalMV = fund.TotalMV
		q.CirculationMV = fund.CircMV
	}
	f.quotes.Set(code, q)
	return q, nil
}

// GetFundamentalData fetches the latest daily_basic row. Market caps arrive
// in 万元 and convert to yuan.
func (f *Fetcher) GetFundamentalData(ctx context.Context, code string) (*market.Fundamental, error) {
	tsCode := symbol.Normalize(code, symbol.TuShare)
	tbl, err := f.query(ctx, "daily_basic", map[string]string{
		"ts_code": tsCode,
	}, "ts_code,trade_date,turnover_rate,pe,pb,total_mv,circ_mv")
	if err != nil {
		if fetch.IsKind(err, fetch.KindEmpty) {
			return &market.Fundamental{}, nil
		}
		return nil, err
	}

	row := tbl.Items[0]
	return &market.Fundamental{
		PERatio: tbl.floatAt(row, "pe"),
		PBRatio: tbl.floatAt(row, "pb"),
		TotalMV: tbl.floatAt(row, "total_mv") * 10000,
		CircMV:  tbl.floatAt(row, "circ_mv") * 10000,
	}, nil
}

// GetEnhancedData aggregates quote, history and fundamentals.
func (f *Fetcher) GetEnhancedData(ctx context.Context, code string, days int) (*market.Enhanced, error) {
	return fetch.EnhancedFromParts(ctx, f, code, days)
}
