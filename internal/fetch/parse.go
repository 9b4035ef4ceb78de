package fetch

import "strconv"

// FloatAt parses fields[idx] as a float, returning 0 for missing, empty or
// non-numeric positions. Delimited quote payloads routinely leave positions
// blank, so zero-as-unknown is the contract here.
func FloatAt(fields []string, idx int) float64 {
	if idx < 0 || idx >= len(fields) || fields[idx] == "" {
		return 0
	}
	v, err := strconv.ParseFloat(fields[idx], 64)
	if err != nil {
		return 0
	}
	return v
}

// IntAt parses fields[idx] as an integer count, tolerating float notation.
func IntAt(fields []string, idx int) int64 {
	return int64(FloatAt(fields, idx))
}

// AsFloat coerces a decoded JSON value (string or number) to float64.
func AsFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0
		}
		return f
	case int64:
		return float64(x)
	}
	return 0
}
