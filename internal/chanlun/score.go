package chanlun

import (
	"fmt"
	"strings"
)

// scoreResult folds trend, divergence and the final ten signals into a
// 0–100 composite. An up-divergence is bearish (rally losing momentum)
// and a down-divergence bullish, hence the sign flip relative to the
// trend bonus.
func scoreResult(trend TrendType, div DivergenceReport, signals []Signal) float64 {
	score := 50.0

	switch trend {
	case TrendUp:
		score += 20
	case TrendDown:
		score -= 20
	}

	if div.HasDivergence {
		switch div.Type {
		case DownDivergence:
			score += 15
		case UpDivergence:
			score -= 15
		}
	}

	recent := signals
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	for _, s := range recent {
		if s.Class.IsBuy() {
			score += 5
		} else {
			score -= 5
		}
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// summarize renders the structure counts and trend direction.
func summarize(r *Result) string {
	var parts []string
	if n := len(r.Fractals); n > 0 {
		parts = append(parts, fmt.Sprintf("%d fractals", n))
	}
	if n := len(r.Strokes); n > 0 {
		parts = append(parts, fmt.Sprintf("%d strokes", n))
	}
	if n := len(r.Pivots); n > 0 {
		parts = append(parts, fmt.Sprintf("%d central pivots", n))
	}
	if len(r.Signals) > 0 {
		var buys, sells int
		for _, s := range r.Signals {
			if s.Class.IsBuy() {
				buys++
			} else {
				sells++
			}
		}
		parts = append(parts, fmt.Sprintf("%d buy / %d sell signals", buys, sells))
	}
	parts = append(parts, "trend "+r.Trend.String())
	return strings.Join(parts, ", ")
}
