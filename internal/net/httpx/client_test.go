package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTextAttachesBrowserHeaders(t *testing.T) {
	var gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New()
	body, status, err := c.GetText(context.Background(), srv.URL, false, map[string]string{
		"Referer": "https://finance.sina.com.cn/",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)
	assert.NotEmpty(t, gotUA)
	assert.Contains(t, userAgents, gotUA)
	assert.Equal(t, "https://finance.sina.com.cn/", gotReferer)
}

func TestGetTextDecodesGB18030(t *testing.T) {
	// "贵州茅台" in GB18030 bytes.
	gbk := []byte{0xB9, 0xF3, 0xD6, 0xDD, 0xC3, 0xA9, 0xCC, 0xA8}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(gbk)
	}))
	defer srv.Close()

	c := New()
	body, _, err := c.GetText(context.Background(), srv.URL, true, nil)
	require.NoError(t, err)
	assert.Equal(t, "贵州茅台", body)
}

func TestPerHostCeilingSharesLimiter(t *testing.T) {
	c := New(WithHostCeiling(100, 1))
	l1 := c.limiter("a.example")
	l2 := c.limiter("a.example")
	l3 := c.limiter("b.example")
	assert.Same(t, l1, l2)
	assert.NotSame(t, l1, l3)
}
