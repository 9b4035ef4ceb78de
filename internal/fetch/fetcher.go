// Package fetch defines the provider contract every upstream adapter
// implements, the classified error taxonomy, and the priority-ordered
// failover manager that fronts all sources behind one interface.
package fetch

import (
	"context"

	"github.com/chanscan/chanscan/internal/market"
)

// Fetcher is the contract one upstream adapter implements. All data comes
// back in the canonical schema regardless of the upstream's native form.
type Fetcher interface {
	// Name is the stable identifier used for attribution and cool-down.
	Name() string
	// Priority orders failover; lower is consulted first.
	Priority() float64

	// GetDailyData returns at least the most recent days trading sessions.
	GetDailyData(ctx context.Context, code string, days int) (market.Series, error)
	// GetRealtimeQuote returns a single-symbol snapshot, nil when the
	// upstream has no record of the code.
	GetRealtimeQuote(ctx context.Context, code string) (*market.Quote, error)
	// GetFundamentalData is best-effort; unsupported fields are zero.
	GetFundamentalData(ctx context.Context, code string) (*market.Fundamental, error)
	// GetEnhancedData aggregates bars, quote and fundamentals in one call.
	GetEnhancedData(ctx context.Context, code string, days int) (*market.Enhanced, error)
}

// BatchQuoter is the optional capability of adapters whose upstream accepts
// many codes per request.
type BatchQuoter interface {
	GetBatchRealtimeQuotes(ctx context.Context, codes []string) (map[string]*market.Quote, error)
}

// EnhancedFromParts is the shared GetEnhancedData shape: daily data is
// best-effort and never fails the aggregate.
func EnhancedFromParts(ctx context.Context, f Fetcher, code string, days int) (*market.Enhanced, error) {
	out := &market.Enhanced{Code: code}

	quote, err := f.GetRealtimeQuote(ctx, code)
	if err != nil {
		return nil, err
	}
	out.Quote = quote

	if bars, err := f.GetDailyData(ctx, code, days); err == nil {
		out.Bars = bars
	}
	if fund, err := f.GetFundamentalData(ctx, code); err == nil {
		out.Fundamental = fund
	}
	return out, nil
}
