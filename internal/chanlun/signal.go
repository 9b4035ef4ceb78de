package chanlun

import "sort"

// classifySignals walks every pivot and emits the six canonical signal
// classes. Class-2 signals are looked for inside the pivot's own stroke
// range only, not at pivot exit; that follows the trading convention this
// engine inherits rather than the stricter textbook definition.
func classifySignals(strokes []Stroke, pivots []CentralPivot) []Signal {
	var out []Signal
	for _, p := range pivots {
		out = append(out, firstClassSignals(strokes, p)...)
		out = append(out, secondClassSignals(strokes, p)...)
		out = append(out, thirdClassSignals(strokes, p)...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func signalAt(f Fractal, class SignalClass, confidence float64, reason string) Signal {
	return Signal{
		Index:      f.Index,
		Date:       f.Date,
		Price:      f.Price,
		Class:      class,
		Confidence: confidence,
		Reason:     reason,
	}
}

// firstClassSignals mark trend reversals around the pivot: a downtrend
// into the pivot resolving upward, or any downward break out of it.
func firstClassSignals(strokes []Stroke, p CentralPivot) []Signal {
	var out []Signal

	if p.StartStroke > 0 && strokes[p.StartStroke-1].Direction == Down {
		if next, ok := strokeAfter(strokes, p); ok && next.Direction == Up {
			out = append(out, signalAt(next.Start, Buy1, 0.8, "downtrend ended, upward break after pivot"))
		}
	}
	if next, ok := strokeAfter(strokes, p); ok && next.Direction == Down {
		out = append(out, signalAt(next.Start, Sell1, 0.8, "uptrend ended, downward break after pivot"))
	}
	return out
}

// secondClassSignals mark pullbacks inside the pivot that hold its
// boundaries.
func secondClassSignals(strokes []Stroke, p CentralPivot) []Signal {
	var out []Signal
	for i := p.StartStroke; i < p.EndStroke && i+1 < len(strokes); i++ {
		cur, next := strokes[i], strokes[i+1]
		switch {
		case cur.Direction == Down && next.Direction == Up && cur.End.Price > p.Low:
			out = append(out, signalAt(next.Start, Buy2, 0.6, "pullback holds above pivot support"))
		case cur.Direction == Up && next.Direction == Down && cur.End.Price < p.High:
			out = append(out, signalAt(next.Start, Sell2, 0.6, "rebound fails below pivot resistance"))
		}
	}
	return out
}

// thirdClassSignals mark breakout retests: the stroke leaving the pivot
// clears a boundary and the following stroke fails to re-enter.
func thirdClassSignals(strokes []Stroke, p CentralPivot) []Signal {
	next, ok := strokeAfter(strokes, p)
	if !ok {
		return nil
	}
	retestIdx := p.EndStroke + 2
	if retestIdx >= len(strokes) {
		return nil
	}
	retest := strokes[retestIdx]

	switch {
	case next.Direction == Up && next.End.Price > p.High:
		if retest.Direction == Down && retest.End.Price > p.High {
			return []Signal{signalAt(retest.End, Buy3, 0.7, "upward breakout, retest holds above pivot")}
		}
	case next.Direction == Down && next.End.Price < p.Low:
		if retest.Direction == Up && retest.End.Price < p.Low {
			return []Signal{signalAt(retest.End, Sell3, 0.7, "downward breakout, retest fails below pivot")}
		}
	}
	return nil
}

func strokeAfter(strokes []Stroke, p CentralPivot) (Stroke, bool) {
	if p.EndStroke+1 >= len(strokes) {
		return Stroke{}, false
	}
	return strokes[p.EndStroke+1], true
}
