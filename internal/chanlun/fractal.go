package chanlun

import "github.com/chanscan/chanscan/internal/market"

// detectFractals scans bar positions 1..N-2. A Top needs both the high and
// the low above the neighbours on each side; a Bottom needs both below.
// Requiring both legs rejects inside/outside bars that only poke one side.
func detectFractals(bars market.Series) []Fractal {
	var out []Fractal
	for i := 1; i < len(bars)-1; i++ {
		cur, prev, next := bars[i], bars[i-1], bars[i+1]

		switch {
		case cur.High > prev.High && cur.High > next.High &&
			cur.Low > prev.Low && cur.Low > next.Low:
			out = append(out, Fractal{
				Index: i,
				Date:  cur.Date,
				Type:  Top,
				Price: cur.High,
				High:  cur.High,
				Low:   cur.Low,
				Close: cur.Close,
			})
		case cur.Low < prev.Low && cur.Low < next.Low &&
			cur.High < prev.High && cur.High < next.High:
			out = append(out, Fractal{
				Index: i,
				Date:  cur.Date,
				Type:  Bottom,
				Price: cur.Low,
				High:  cur.High,
				Low:   cur.Low,
				Close: cur.Close,
			})
		}
	}
	return filterAdjacent(out)
}

// filterAdjacent collapses same-type runs to their extremum: the higher
// price wins for Tops, the lower for Bottoms.
func filterAdjacent(fractals []Fractal) []Fractal {
	if len(fractals) <= 1 {
		return fractals
	}
	filtered := []Fractal{fractals[0]}
	for _, cur := range fractals[1:] {
		last := &filtered[len(filtered)-1]
		if cur.Type != last.Type {
			filtered = append(filtered, cur)
			continue
		}
		if cur.Type == Top && cur.Price > last.Price {
			*last = cur
		} else if cur.Type == Bottom && cur.Price < last.Price {
			*last = cur
		}
	}
	return filtered
}
