// Package market defines the canonical data model every upstream source is
// normalized into: daily bars, realtime quotes and fundamental snapshots.
package market

import (
	"fmt"
	"sort"
	"time"
)

// Columns is the canonical column order for daily bar data. Every adapter
// renames, type-converts and unit-converts into this schema before returning.
var Columns = []string{"code", "date", "open", "high", "low", "close", "volume", "amount", "pct_chg"}

// DateLayout is the canonical calendar-date format.
const DateLayout = "2006-01-02"

// Bar is a single daily candle. Volume counts shares, Amount is in yuan.
// Bars are immutable once produced.
type Bar struct {
	Code   string    `json:"code"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
	Amount float64   `json:"amount"`
	PctChg float64   `json:"pct_chg"`
}

// Validate checks the OHLC ordering invariant for a single bar.
func (b Bar) Validate() error {
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("bar %s %s: non-positive price", b.Code, b.Date.Format(DateLayout))
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s %s: negative volume", b.Code, b.Date.Format(DateLayout))
	}
	if b.Amount < 0 {
		return fmt.Errorf("bar %s %s: negative amount", b.Code, b.Date.Format(DateLayout))
	}
	lo, hi := b.Open, b.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	if b.Low > lo || b.High < hi || b.High < b.Low {
		return fmt.Errorf("bar %s %s: OHLC out of order (o=%.3f h=%.3f l=%.3f c=%.3f)",
			b.Code, b.Date.Format(DateLayout), b.Open, b.High, b.Low, b.Close)
	}
	return nil
}

// Series is an ordered run of daily bars for one code, strictly increasing by
// date with no duplicates.
type Series []Bar

// Validate checks every bar plus the ordering invariant of the sequence.
func (s Series) Validate() error {
	for i, b := range s {
		if err := b.Validate(); err != nil {
			return err
		}
		if i > 0 && !s[i-1].Date.Before(b.Date) {
			return fmt.Errorf("series %s: dates not strictly increasing at %s",
				b.Code, b.Date.Format(DateLayout))
		}
	}
	return nil
}

// SortByDate orders the series ascending by date in place.
func (s Series) SortByDate() {
	sort.Slice(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
}

// FillPctChg computes pct_chg from consecutive closes for bars that carry a
// zero value. The first bar stays at zero when there is no prior close.
func (s Series) FillPctChg() {
	for i := 1; i < len(s); i++ {
		if s[i].PctChg == 0 && s[i-1].Close > 0 {
			s[i].PctChg = (s[i].Close - s[i-1].Close) / s[i-1].Close * 100
		}
	}
}

// Tail returns the last n bars (or the whole series when shorter).
func (s Series) Tail(n int) Series {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// Canonicalize sorts by date and back-fills pct_chg. Applying it to an
// already-canonical series is the identity.
func (s Series) Canonicalize() Series {
	s.SortByDate()
	s.FillPctChg()
	return s
}
