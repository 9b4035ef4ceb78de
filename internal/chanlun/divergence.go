package chanlun

import "math"

// divergenceRatio: the later stroke must carry less than this fraction of
// the prior stroke's strength for a divergence to be confirmed.
const divergenceRatio = 0.8

// detectDivergence compares the last two strokes. A divergence needs the
// same direction, a new extreme, and clearly weaker momentum.
func detectDivergence(strokes []Stroke) DivergenceReport {
	if len(strokes) < 2 {
		return DivergenceReport{Type: NoDivergence}
	}
	last, prev := strokes[len(strokes)-1], strokes[len(strokes)-2]
	if last.Direction != prev.Direction || prev.Strength == 0 {
		return DivergenceReport{Type: NoDivergence}
	}

	delta := math.Abs(last.Strength-prev.Strength) / prev.Strength
	weaker := last.Strength < prev.Strength*divergenceRatio

	if last.Direction == Up && last.End.Price > prev.End.Price && weaker {
		return DivergenceReport{HasDivergence: true, Type: UpDivergence, StrengthDelta: delta}
	}
	if last.Direction == Down && last.End.Price < prev.End.Price && weaker {
		return DivergenceReport{HasDivergence: true, Type: DownDivergence, StrengthDelta: delta}
	}
	return DivergenceReport{Type: NoDivergence, StrengthDelta: delta}
}
