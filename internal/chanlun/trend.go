package chanlun

// trendWindow is how many trailing strokes the trend classifier looks at.
const trendWindow = 5

// trendRatio is the dominance factor one direction must hold over the
// other. 1.5 is inherited as-is; treat it as a tunable rather than a
// derived constant.
const trendRatio = 1.5

// classifyTrend counts Up versus Down among the final strokes.
func classifyTrend(strokes []Stroke) TrendType {
	if len(strokes) == 0 {
		return Consolidation
	}
	recent := strokes
	if len(recent) > trendWindow {
		recent = recent[len(recent)-trendWindow:]
	}

	var up, down int
	for _, s := range recent {
		if s.Direction == Up {
			up++
		} else {
			down++
		}
	}
	switch {
	case float64(up) > trendRatio*float64(down):
		return TrendUp
	case float64(down) > trendRatio*float64(up):
		return TrendDown
	}
	return Consolidation
}
