// Package symbol translates between display codes ("600519") and the symbol
// conventions each upstream venue requires.
package symbol

import (
	"strings"

	"github.com/rs/zerolog/log"
)

// Market is the exchange a code trades on.
type Market int

const (
	Shanghai Market = iota
	Shenzhen
)

func (m Market) String() string {
	if m == Shanghai {
		return "SH"
	}
	return "SZ"
}

// Format is one venue's symbol convention.
type Format int

const (
	// Prefixed is "sh600519" / "sz000001" (sina, tencent).
	Prefixed Format = iota
	// Tonghuashun is "hs_600519" for both markets.
	Tonghuashun
	// TuShare is "600519.SH" / "000001.SZ".
	TuShare
	// Baostock is "sh.600519" / "sz.000001".
	Baostock
	// Yahoo is "600519.SS" / "000001.SZ".
	Yahoo
)

var shanghaiPrefixes = []string{"600", "601", "603", "688"}
var shenzhenPrefixes = []string{"000", "002", "300", "301"}

// MarketOf classifies a bare 6-digit code by prefix. Unknown prefixes default
// to Shenzhen with a warning, matching upstream behavior for odd boards.
func MarketOf(code string) Market {
	for _, p := range shanghaiPrefixes {
		if strings.HasPrefix(code, p) {
			return Shanghai
		}
	}
	for _, p := range shenzhenPrefixes {
		if strings.HasPrefix(code, p) {
			return Shenzhen
		}
	}
	log.Warn().Str("code", code).Msg("unknown market prefix, defaulting to Shenzhen")
	return Shenzhen
}

// Strip removes any venue decoration and returns the bare 6-digit code.
func Strip(code string) string {
	c := strings.TrimSpace(code)
	lower := strings.ToLower(c)
	switch {
	case strings.HasPrefix(lower, "hs_"):
		c = c[3:]
	case strings.HasPrefix(lower, "sh.") || strings.HasPrefix(lower, "sz."):
		c = c[3:]
	case strings.HasPrefix(lower, "sh") || strings.HasPrefix(lower, "sz"):
		c = c[2:]
	}
	for _, suffix := range []string{".SH", ".SZ", ".SS", ".sh", ".sz", ".ss"} {
		c = strings.TrimSuffix(c, suffix)
	}
	return c
}

// Normalize renders a code in the given venue format. Input may already be
// decorated; it is stripped first so normalization is idempotent.
func Normalize(code string, f Format) string {
	bare := Strip(code)
	m := MarketOf(bare)
	switch f {
	case Prefixed:
		if m == Shanghai {
			return "sh" + bare
		}
		return "sz" + bare
	case Tonghuashun:
		return "hs_" + bare
	case TuShare:
		return bare + "." + m.String()
	case Baostock:
		if m == Shanghai {
			return "sh." + bare
		}
		return "sz." + bare
	case Yahoo:
		if m == Shanghai {
			return bare + ".SS"
		}
		return bare + ".SZ"
	}
	return bare
}

// Denormalize recovers the display code from any venue form.
func Denormalize(code string) string {
	return Strip(code)
}
