// Package chanlun decomposes a daily bar series into Chan-Lun structures:
// fractals, strokes, central pivots, trend type, divergence and the
// canonical buy/sell signal classes, plus a 0–100 composite score.
package chanlun

import "time"

// FractalType tags a local extremum.
type FractalType int

const (
	Top FractalType = iota
	Bottom
)

func (t FractalType) String() string {
	switch t {
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	}
	return "unknown"
}

// Direction of a stroke.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// TrendType classifies the recent stroke sequence.
type TrendType int

const (
	Consolidation TrendType = iota
	TrendUp
	TrendDown
)

func (t TrendType) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	}
	return "consolidation"
}

// SignalClass is one of the six canonical buy/sell point classes.
type SignalClass int

const (
	Buy1 SignalClass = iota
	Buy2
	Buy3
	Sell1
	Sell2
	Sell3
)

func (c SignalClass) String() string {
	switch c {
	case Buy1:
		return "buy1"
	case Buy2:
		return "buy2"
	case Buy3:
		return "buy3"
	case Sell1:
		return "sell1"
	case Sell2:
		return "sell2"
	case Sell3:
		return "sell3"
	}
	return "unknown"
}

// IsBuy reports whether the class is one of the buy categories.
func (c SignalClass) IsBuy() bool { return c == Buy1 || c == Buy2 || c == Buy3 }

// Fractal is a confirmed local extremum over three consecutive bars. Price
// is the high for a Top and the low for a Bottom.
type Fractal struct {
	Index int         `json:"index"`
	Date  time.Time   `json:"date"`
	Type  FractalType `json:"type"`
	Price float64     `json:"price"`
	High  float64     `json:"high"`
	Low   float64     `json:"low"`
	Close float64     `json:"close"`
}

// Stroke connects two opposite-type fractals. Strength is the relative
// price change from the start fractal; Length is the bar-index span.
type Stroke struct {
	Start     Fractal   `json:"start"`
	End       Fractal   `json:"end"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"`
	Length    int       `json:"length"`
}

// MinPrice is the smaller of the two endpoint prices.
func (s Stroke) MinPrice() float64 {
	if s.Start.Price < s.End.Price {
		return s.Start.Price
	}
	return s.End.Price
}

// MaxPrice is the larger of the two endpoint prices.
func (s Stroke) MaxPrice() float64 {
	if s.Start.Price > s.End.Price {
		return s.Start.Price
	}
	return s.End.Price
}

// CentralPivot is a consolidation zone formed by at least three
// overlapping strokes. StartStroke and EndStroke index into the stroke
// slice; both boundaries are closed.
type CentralPivot struct {
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	StartStroke int     `json:"start_stroke"`
	EndStroke   int     `json:"end_stroke"`
	StrokeCount int     `json:"stroke_count"`
	Level       string  `json:"level"`
}

// Signal is one classified buy/sell point.
type Signal struct {
	Index      int         `json:"index"`
	Date       time.Time   `json:"date"`
	Price      float64     `json:"price"`
	Class      SignalClass `json:"class"`
	Confidence float64     `json:"confidence"`
	Reason     string      `json:"reason"`
}

// DivergenceType tags the direction of a momentum divergence.
type DivergenceType int

const (
	NoDivergence DivergenceType = iota
	UpDivergence
	DownDivergence
)

func (t DivergenceType) String() string {
	switch t {
	case UpDivergence:
		return "up"
	case DownDivergence:
		return "down"
	}
	return "none"
}

// DivergenceReport compares the momentum of the last two same-direction
// strokes. StrengthDelta is the relative strength difference regardless of
// whether a divergence was confirmed.
type DivergenceReport struct {
	HasDivergence bool           `json:"has_divergence"`
	Type          DivergenceType `json:"type"`
	StrengthDelta float64        `json:"strength_delta"`
}

// Result is the full analysis output. An input failing the preconditions
// yields a zero Result with a warning.
type Result struct {
	Fractals   []Fractal        `json:"fractals"`
	Strokes    []Stroke         `json:"strokes"`
	Pivots     []CentralPivot   `json:"pivots"`
	Signals    []Signal         `json:"signals"`
	Trend      TrendType        `json:"trend"`
	Divergence DivergenceReport `json:"divergence"`
	Score      float64          `json:"score"`
	Summary    string           `json:"summary"`
	Warnings   []string         `json:"warnings,omitempty"`
}
