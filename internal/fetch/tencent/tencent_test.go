package tencent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanscan/chanscan/internal/fetch"
	"github.com/chanscan/chanscan/internal/net/pacer"
)

// buildPayload assembles a v_sh600519 response with the positions the
// parser reads populated and the rest blank.
func buildPayload() string {
	fields := make([]string, 55)
	fields[0] = "1"
	fields[fieldName] = "贵州茅台"
	fields[2] = "600519"
	fields[fieldPrice] = "1705.50"
	fields[fieldPreClose] = "1690.00"
	fields[fieldOpen] = "1700.00"
	fields[fieldVolumeLots] = "31234"
	fields[fieldHigh] = "1712.00"
	fields[fieldLow] = "1688.00"
	fields[fieldAmountWan] = "531234.00"
	fields[fieldChangeAmount] = "15.50"
	fields[fieldChangePct] = "0.92"
	fields[fieldTurnover] = "0.25"
	fields[fieldPERatio] = "32.10"
	return `v_sh600519="` + strings.Join(fields, "~") + `";`
}

func newTestFetcher(t *testing.T, handler http.Handler) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(WithEndpoint(srv.URL), WithPacer(pacer.None{}))
}

func TestGetRealtimeQuote(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.String(), "q=sh600519")
		fmt.Fprint(w, buildPayload())
	}))

	q, err := f.GetRealtimeQuote(context.Background(), "600519")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 1705.5, q.Price)
	assert.Equal(t, 1690.0, q.PreClose)
	assert.Equal(t, 1700.0, q.OpenPrice)
	// Lots convert to shares, 万元 to yuan.
	assert.Equal(t, int64(3123400), q.Volume)
	assert.Equal(t, 5312340000.0, q.Amount)
	assert.Equal(t, 0.92, q.ChangePct)
	assert.Equal(t, 0.25, q.TurnoverRate)
	assert.Equal(t, 32.10, q.PERatio)
	assert.InDelta(t, (1712.0-1688.0)/1690*100, q.Amplitude, 1e-9)
}

func TestGetRealtimeQuoteNoneMatch(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `v_pv_none_match="1";`)
	}))

	q, err := f.GetRealtimeQuote(context.Background(), "999999")
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestGetRealtimeQuoteFieldCountBelowThreshold(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `v_sh600519="1~name~600519";`)
	}))

	_, err := f.GetRealtimeQuote(context.Background(), "600519")
	require.Error(t, err)
	assert.True(t, fetch.IsKind(err, fetch.KindParse))
}

func TestGetDailyDataSynthesizesTodayBar(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, buildPayload())
	}))

	bars, err := f.GetDailyData(context.Background(), "600519", 1)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 1705.5, bars[0].Close)
	assert.Equal(t, int64(3123400), bars[0].Volume)
	require.NoError(t, bars.Validate())
}

func TestGetDailyDataMultiDayReportsEmpty(t *testing.T) {
	hits := 0
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, buildPayload())
	}))

	// A history request must report empty so the manager moves on to a
	// history-capable source instead of accepting one synthetic bar.
	_, err := f.GetDailyData(context.Background(), "600519", 120)
	require.Error(t, err)
	assert.True(t, fetch.IsKind(err, fetch.KindEmpty))
	assert.Zero(t, hits, "multi-day request must not hit the upstream")
}

func TestGetFundamentalDataFromQuote(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, buildPayload())
	}))

	fund, err := f.GetFundamentalData(context.Background(), "600519")
	require.NoError(t, err)
	assert.Equal(t, 32.10, fund.PERatio)
	assert.Zero(t, fund.PBRatio)
}

func TestMissingPositionsParseAsZero(t *testing.T) {
	fields := make([]string, 21)
	fields[fieldName] = "x"
	fields[fieldPrice] = "10.0"
	payload := `v_sz000001="` + strings.Join(fields, "~") + `";`

	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, payload)
	}))

	q, err := f.GetRealtimeQuote(context.Background(), "000001")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 10.0, q.Price)
	assert.Zero(t, q.PreClose)
	assert.Zero(t, q.Volume)
	// High/low fall back to last price when absent.
	assert.Equal(t, 10.0, q.High)
	assert.Equal(t, 10.0, q.Low)
}
