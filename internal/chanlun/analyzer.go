package chanlun

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/chanscan/chanscan/internal/market"
)

// minBars is the smallest series the decomposition accepts.
const minBars = 10

// Analyze runs the full decomposition over a canonical bar series. It is a
// pure function of its input; concurrent analyses share nothing. A series
// failing the preconditions yields an empty Result carrying a warning
// instead of an error.
func Analyze(bars market.Series) *Result {
	r := &Result{Trend: Consolidation}

	if len(bars) < minBars {
		r.Warnings = append(r.Warnings, fmt.Sprintf("need at least %d bars, got %d", minBars, len(bars)))
		log.Warn().Int("bars", len(bars)).Msg("series too short for decomposition")
		r.Summary = summarize(r)
		return r
	}
	if err := bars.Validate(); err != nil {
		r.Warnings = append(r.Warnings, "invalid series: "+err.Error())
		log.Warn().Err(err).Msg("series failed validation")
		r.Summary = summarize(r)
		return r
	}

	r.Fractals = detectFractals(bars)
	r.Strokes = buildStrokes(r.Fractals)
	r.Pivots = buildPivots(r.Strokes)
	r.Signals = classifySignals(r.Strokes, r.Pivots)
	r.Trend = classifyTrend(r.Strokes)
	r.Divergence = detectDivergence(r.Strokes)
	r.Score = scoreResult(r.Trend, r.Divergence, r.Signals)
	r.Summary = summarize(r)

	log.Debug().
		Int("bars", len(bars)).
		Int("fractals", len(r.Fractals)).
		Int("strokes", len(r.Strokes)).
		Int("pivots", len(r.Pivots)).
		Int("signals", len(r.Signals)).
		Str("trend", r.Trend.String()).
		Float64("score", r.Score).
		Msg("decomposition complete")
	return r
}
