package tushare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanscan/chanscan/internal/fetch"
	"github.com/chanscan/chanscan/internal/net/pacer"
)

const dailyBody = `{"code":0,"msg":"","data":{
"fields":["ts_code","trade_date","open","high","low","close","pct_chg","vol","amount"],
"items":[
["600519.SH","20240517",1690.0,1712.0,1688.0,1705.5,0.92,31234.0,5312340.0],
["600519.SH","20240516",1688.0,1700.0,1680.0,1690.0,0.12,20000.0,3380000.0]
]}}`

const basicBody = `{"code":0,"msg":"","data":{
"fields":["ts_code","trade_date","turnover_rate","pe","pb","total_mv","circ_mv"],
"items":[["600519.SH","20240517",0.25,32.1,8.5,214200000.0,214200000.0]]}}`

func newTestFetcher(t *testing.T, handler http.Handler, opts ...Option) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]Option{
		WithEndpoint(srv.URL),
		WithToken("test-token"),
		WithPacer(pacer.None{}),
	}, opts...)
	return New(opts...)
}

func decodeRequest(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var req map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
	return req
}

func TestGetDailyData(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, "daily", req["api_name"])
		assert.Equal(t, "test-token", req["token"])
		params := req["params"].(map[string]any)
		assert.Equal(t, "600519.SH", params["ts_code"])
		fmt.Fprint(w, dailyBody)
	}))

	bars, err := f.GetDailyData(context.Background(), "600519", 30)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	// Newest-first rows come back in ascending date order.
	assert.Equal(t, "2024-05-16", bars[0].Date.Format("2006-01-02"))
	assert.Equal(t, 1705.5, bars[1].Close)
	// Lots convert to shares, thousand yuan to yuan.
	assert.Equal(t, int64(3123400), bars[1].Volume)
	assert.Equal(t, 5312340000.0, bars[1].Amount)
	require.NoError(t, bars.Validate())
}

func TestNoTokenIsNotConfigured(t *testing.T) {
	f := New(WithPacer(pacer.None{}))

	_, err := f.GetDailyData(context.Background(), "600519", 30)
	require.Error(t, err)
	assert.True(t, fetch.IsKind(err, fetch.KindNotConfigured))
}

func TestQuotaMessageIsRateLimit(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":40203,"msg":"抱歉，您每分钟最多访问该接口80次","data":null}`)
	}))

	_, err := f.GetDailyData(context.Background(), "600519", 30)
	require.Error(t, err)
	assert.True(t, fetch.IsKind(err, fetch.KindRateLimit))
}

func TestEmptyResultIsEmpty(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"msg":"","data":{"fields":[],"items":[]}}`)
	}))

	_, err := f.GetDailyData(context.Background(), "600519", 30)
	require.Error(t, err)
	assert.True(t, fetch.IsKind(err, fetch.KindEmpty))
}

func TestGetFundamentalData(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		assert.Equal(t, "daily_basic", req["api_name"])
		fmt.Fprint(w, basicBody)
	}))

	fund, err := f.GetFundamentalData(context.Background(), "600519")
	require.NoError(t, err)
	assert.Equal(t, 32.1, fund.PERatio)
	assert.Equal(t, 8.5, fund.PBRatio)
	// 万元 converts to yuan.
	assert.Equal(t, 2142000000000.0, fund.TotalMV)
}

func TestGetRealtimeQuoteFromDaily(t *testing.T) {
	f := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRequest(t, r)
		if req["api_name"] == "daily_basic" {
			fmt.Fprint(w, basicBody)
			return
		}
		fmt.Fprint(w, dailyBody)
	}))

	q, err := f.GetRealtimeQuote(context.Background(), "600519")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 1705.5, q.Price)
	assert.Equal(t, 1690.0, q.PreClose)
	assert.Equal(t, 32.1, q.PERatio)
	assert.True(t, q.KnownValuation())
}
