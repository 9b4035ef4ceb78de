package chanlun

// pivotLevel marks which bar granularity the pivots were derived from.
const pivotLevel = "daily"

// overlap intersects the price ranges of two strokes, where a stroke's
// range spans its two endpoint prices.
func overlap(a, b Stroke) (low, high float64) {
	low = a.MinPrice()
	if b.MinPrice() > low {
		low = b.MinPrice()
	}
	high = a.MaxPrice()
	if b.MaxPrice() < high {
		high = b.MaxPrice()
	}
	return low, high
}

// buildPivots scans the strokes for three-stroke overlaps and extends each
// zone while subsequent strokes stay inside it. Zone boundaries are closed
// on both sides, for the extension test as well as the signal classifier.
// After a pivot is emitted the scan resumes at its last stroke, so a stroke
// can close one pivot and open the next.
func buildPivots(strokes []Stroke) []CentralPivot {
	var out []CentralPivot
	for i := 0; i+2 < len(strokes); {
		p, ok := tryPivot(strokes, i)
		if !ok {
			i++
			continue
		}
		out = append(out, p)
		i = p.EndStroke
	}
	return out
}

func tryPivot(strokes []Stroke, start int) (CentralPivot, bool) {
	lo1, hi1 := overlap(strokes[start], strokes[start+1])
	lo2, hi2 := overlap(strokes[start+1], strokes[start+2])
	if hi1 <= lo1 || hi2 <= lo2 {
		return CentralPivot{}, false
	}

	low, high := lo1, hi1
	if lo2 > low {
		low = lo2
	}
	if hi2 < high {
		high = hi2
	}
	if high <= low {
		return CentralPivot{}, false
	}

	p := CentralPivot{
		High:        high,
		Low:         low,
		StartStroke: start,
		EndStroke:   start + 2,
		StrokeCount: 3,
		Level:       pivotLevel,
	}
	for j := start + 3; j < len(strokes); j++ {
		s := strokes[j]
		if s.Start.Price < low || s.Start.Price > high ||
			s.End.Price < low || s.End.Price > high {
			break
		}
		p.EndStroke = j
		p.StrokeCount++
	}
	return p, true
}
