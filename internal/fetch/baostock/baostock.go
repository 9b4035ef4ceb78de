// Package baostock adapts the Baostock history service. The upstream speaks
// a session-oriented protocol (login, query, logout) rather than plain HTTP,
// so the adapter takes a SessionClient and brackets every query with a
// login/logout pair. Without a client the adapter reports not-configured and
// the manager skips it for the session.
package baostock

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chanscan/chanscan/internal/fetch"
	"github.com/chanscan/chanscan/internal/market"
	"github.com/chanscan/chanscan/internal/market/symbol"
	"github.com/chanscan/chanscan/internal/net/pacer"
)

// Name is the stable source identifier.
const Name = "baostock"

// queryFields is the column list requested from the history endpoint.
const queryFields = "date,open,high,low,close,volume,amount,pctChg"

// SessionClient is the session-oriented transport this adapter drives. Each
// query runs inside one login/logout bracket; implementations own connection
// management underneath.
type SessionClient interface {
	Login(ctx context.Context) error
	// QueryHistoryKData returns one row per trading day, each row holding
	// the columns of fields in order.
	QueryHistoryKData(ctx context.Context, code, fields, startDate, endDate, frequency, adjustFlag string) ([][]string, error)
	Logout(ctx context.Context) error
}

// Fetcher implements fetch.Fetcher.
type Fetcher struct {
	client SessionClient
	pace   pacer.Pacer
}

// Option mutates the adapter at construction time.
type Option func(*Fetcher)

// WithClient attaches the session transport.
func WithClient(c SessionClient) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithPacer overrides the default 300–800ms interval pacer.
func WithPacer(p pacer.Pacer) Option {
	return func(f *Fetcher) { f.pace = p }
}

// New builds the Baostock adapter.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		pace: pacer.NewInterval(300*time.Millisecond, 800*time.Millisecond),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) Name() string      { return Name }
func (f *Fetcher) Priority() float64 { return 3 }

// GetDailyData queries daily bars with forward adjustment. The logout runs
// on every path, including query errors.
func (f *Fetcher) GetDailyData(ctx context.Context, code string, days int) (market.Series, error) {
	if f.client == nil {
		return nil, fetch.NewError(fetch.KindNotConfigured, Name, "no session client", nil)
	}
	if err := f.pace.Wait(ctx); err != nil {
		return nil, fetch.NewError(fetch.KindCancelled, Name, "cancelled while pacing", err)
	}

	if err := f.client.Login(ctx); err != nil {
		return nil, fetch.NewError(fetch.KindTransport, Name, "login failed", err)
	}
	defer func() {
		// The request context may already be cancelled here; the logout
		// still has to reach the upstream or the session leaks.
		if err := f.client.Logout(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Str("source", Name).Err(err).Msg("logout failed")
		}
	}()

	end := time.Now()
	start := end.AddDate(0, 0, -(days*7/5 + 10))
	sym := symbol.Normalize(code, symbol.Baostock)
	rows, err := f.client.QueryHistoryKData(ctx, sym, queryFields,
		start.Format(market.DateLayout), end.Format(market.DateLayout), "d", "2")
	if err != nil {
		return nil, fetch.ClassifyHTTP(Name, err)
	}
	if len(rows) == 0 {
		return nil, fetch.NewError(fetch.KindEmpty, Name, "no history rows", nil)
	}

	bars := make(market.Series, 0, len(rows))
	for _, row := range rows {
		if len(row) < 8 {
			continue
		}
		date, err := time.Parse(market.DateLayout, row[0])
		if err != nil {
			log.Warn().Str("source", Name).Str("date", row[0]).Msg("skipping unparseable history row")
			continue
		}
		bars = append(bars, market.Bar{
			Code:   code,
			Date:   date,
			Open:   fetch.FloatAt(row, 1),
			High:   fetch.FloatAt(row, 2),
			Low:    fetch.FloatAt(row, 3),
			Close:  fetch.FloatAt(row, 4),
			Volume: fetch.IntAt(row, 5),
			Amount: fetch.FloatAt(row, 6),
			PctChg: fetch.FloatAt(row, 7),
		})
	}
	if len(bars) == 0 {
		return nil, fetch.NewError(fetch.KindParse, Name, "no parseable history rows", nil)
	}
	return bars.Canonicalize().Tail(days), nil
}

// GetRealtimeQuote approximates a snapshot from the two latest daily bars.
// The upstream serves history only, so data lags by up to one session.
func (f *Fetcher) GetRealtimeQuote(ctx context.Context, code string) (*market.Quote, error) {
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
	return q, nil
}

// GetFundamentalData: the history endpoint carries no valuation fields.
func (f *Fetcher) GetFundamentalData(ctx context.Context, code string) (*market.Fundamental, error) {
	if f.client == nil {
		return nil, fetch.NewError(fetch.KindNotConfigured, Name, "no session client", nil)
	}
	return &market.Fundamental{}, nil
}

// GetEnhancedData aggregates quote plus bar history.
func (f *Fetcher) GetEnhancedData(ctx context.Context, code string, days int) (*market.Enhanced, error) {
	return fetch.EnhancedFromParts(ctx, f, code, days)
}
