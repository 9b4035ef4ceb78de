package market

// Quote is a realtime snapshot for one code. Fields an upstream cannot supply
// are carried as zero, meaning "unknown"; callers use Known* helpers to
// disambiguate where it matters.
type Quote struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	ChangePct     float64 `json:"change_pct"`
	ChangeAmount  float64 `json:"change_amount"`
	Volume        int64   `json:"volume"`
	Amount        float64 `json:"amount"`
	TurnoverRate  float64 `json:"turnover_rate"`
	Amplitude     float64 `json:"amplitude"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	OpenPrice     float64 `json:"open_price"`
	PreClose      float64 `json:"pre_close"`
	PERatio       float64 `json:"pe_ratio"`
	PBRatio       float64 `json:"pb_ratio"`
	TotalMV       float64 `json:"total_mv"`
	CirculationMV float64 `json:"circulation_mv"`
}

// KnownValuation reports whether the snapshot carries valuation fields at all.
// Sina and Tonghuashun quotes never do; Tencent carries PE only.
func (q *Quote) KnownValuation() bool {
	return q.PERatio != 0 || q.PBRatio != 0 || q.TotalMV != 0
}

// DeriveFromPreClose fills change_amount, change_pct and amplitude from the
// previous close when the upstream did not provide them directly.
func (q *Quote) DeriveFromPreClose() {
	if q.PreClose <= 0 {
		return
	}
	if q.ChangeAmount == 0 {
		q.ChangeAmount = q.Price - q.PreClose
	}
	if q.ChangePct == 0 {
		q.ChangePct = q.ChangeAmount / q.PreClose * 100
	}
	if q.Amplitude == 0 && q.High > 0 && q.Low > 0 {
		q.Amplitude = (q.High - q.Low) / q.PreClose * 100
	}
}

// Fundamental is a best-effort valuation snapshot. Zero means unknown.
type Fundamental struct {
	PERatio       float64 `json:"pe_ratio"`
	PBRatio       float64 `json:"pb_ratio"`
	TotalMV       float64 `json:"total_mv"`
	CircMV        float64 `json:"circ_mv"`
	ROE           float64 `json:"roe"`
	RevenueGrowth float64 `json:"revenue_growth"`
}

// Enhanced aggregates everything one adapter can say about a code.
type Enhanced struct {
	Code        string       `json:"code"`
	Bars        Series       `json:"bars,omitempty"`
	Quote       *Quote       `json:"quote,omitempty"`
	Fundamental *Fundamental `json:"fundamental,omitempty"`
}
