package baostock

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chanscan/chanscan/internal/fetch"
	"github.com/chanscan/chanscan/internal/net/pacer"
)

type fakeClient struct {
	logins    int
	logouts   int
	queryErr  error
	queryHook func()
	rows      [][]string
	gotCode   string
	gotFlag   string
}

func (c *fakeClient) Login(ctx context.Context) error { c.logins++; return nil }

func (c *fakeClient) QueryHistoryKData(ctx context.Context, code, fields, start, end, freq, adjust string) ([][]string, error) {
	c.gotCode = code
	c.gotFlag = adjust
	if c.queryHook != nil {
		c.queryHook()
	}
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	return c.rows, nil
}

func (c *fakeClient) Logout(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.logouts++
	return nil
}

func newTestFetcher(c SessionClient) *Fetcher {
	return New(WithClient(c), WithPacer(pacer.None{}))
}

func TestGetDailyData(t *testing.T) {
	c := &fakeClient{rows: [][]string{
		{"2024-05-16", "1688.0", "1700.0", "1680.0", "1690.0", "2000000", "3380000000.0", "0.12"},
		{"2024-05-17", "1690.0", "1712.0", "1688.0", "1705.5", "3123400", "5312340000.0", "0.92"},
	}}
	f := newTestFetcher(c)

	bars, err := f.GetDailyData(context.Background(), "600519", 30)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "sh.600519", c.gotCode)
	assert.Equal(t, "2", c.gotFlag)
	assert.Equal(t, 1705.5, bars[1].Close)
	assert.Equal(t, int64(3123400), bars[1].Volume)
	require.NoError(t, bars.Validate())
	assert.Equal(t, 1, c.logins)
	assert.Equal(t, 1, c.logouts)
}

func TestLogoutRunsOnQueryError(t *testing.T) {
	c := &fakeClient{queryErr: errors.New("connection reset")}
	f := newTestFetcher(c)

	_, err := f.GetDailyData(context.Background(), "600519", 30)
	require.Error(t, err)
	assert.True(t, fetch.IsKind(err, fetch.KindTransport))
	assert.Equal(t, 1, c.logins)
	assert.Equal(t, 1, c.logouts)
}

func TestLogoutRunsAfterCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &fakeClient{queryErr: errors.New("connection reset")}
	c.queryHook = cancel
	f := newTestFetcher(c)

	_, err := f.GetDailyData(ctx, "600519", 30)
	require.Error(t, err)
	assert.Equal(t, 1, c.logins)
	assert.Equal(t, 1, c.logouts, "logout must not inherit the caller's cancellation")
}

func TestNoClientIsNotConfigured(t *testing.T) {
	f := New(WithPacer(pacer.None{}))

	_, err := f.GetDailyData(context.Background(), "600519", 30)
	require.Error(t, err)
	assert.True(t, fetch.IsKind(err, fetch.KindNotConfigured))
}

func TestEmptyRowsIsEmpty(t *testing.T) {
	f := newTestFetcher(&fakeClient{})

	_, err := f.GetDailyData(context.Background(), "600519", 30)
	require.Error(t, err)
	assert.True(t, fetch.IsKind(err, fetch.KindEmpty))
}

func TestGetRealtimeQuoteFromHistory(t *testing.T) {
	c := &fakeClient{rows: [][]string{
		{"2024-05-16", "1688.0", "1700.0", "1680.0", "1690.0", "2000000", "3380000000.0", "0.12"},
		{"2024-05-17", "1690.0", "1712.0", "1688.0", "1705.5", "3123400", "5312340000.0", "0.92"},
	}}
	f := newTestFetcher(c)

	q, err := f.GetRealtimeQuote(context.Background(), "600519")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 1705.5, q.Price)
	assert.Equal(t, 1690.0, q.PreClose)
	assert.Equal(t, 0.92, q.ChangePct)
}
