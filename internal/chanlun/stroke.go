package chanlun

import "math"

// buildStrokes connects consecutive opposite-type fractals. Equal-type
// pairs can still slip through the adjacency filter in edge cases; those
// pairs are skipped rather than guessed at.
func buildStrokes(fractals []Fractal) []Stroke {
	var out []Stroke
	for i := 0; i+1 < len(fractals); i++ {
		start, end := fractals[i], fractals[i+1]

		var dir Direction
		switch {
		case start.Type == Bottom && end.Type == Top:
			dir = Up
		case start.Type == Top && end.Type == Bottom:
			dir = Down
		default:
			continue
		}

		out = append(out, Stroke{
			Start:     start,
			End:       end,
			Direction: dir,
			Strength:  math.Abs(end.Price-start.Price) / start.Price,
			Length:    end.Index - start.Index,
		})
	}
	return out
}
