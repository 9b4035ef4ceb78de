package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := NewError(KindRateLimit, "sina", "throttled", nil)
	assert.Equal(t, KindRateLimit, KindOf(err))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, KindRateLimit, KindOf(wrapped))

	assert.Equal(t, KindCancelled, KindOf(context.Canceled))
	assert.Equal(t, KindTransport, KindOf(errors.New("something else")))
}

func TestIsKind(t *testing.T) {
	err := NewError(KindEmpty, "tencent", "no rows", nil)
	assert.True(t, IsKind(err, KindEmpty))
	assert.False(t, IsKind(err, KindParse))
	assert.False(t, IsKind(nil, KindEmpty))
}

func TestLooksRateLimited(t *testing.T) {
	assert.True(t, LooksRateLimited("HTTP 429 Too Many Requests"))
	assert.True(t, LooksRateLimited("your IP has been BANNED"))
	assert.True(t, LooksRateLimited("rate exceeded"))
	assert.False(t, LooksRateLimited("connection refused"))
}

func TestClassifyHTTP(t *testing.T) {
	cancelled := ClassifyHTTP("yahoo", context.DeadlineExceeded)
	assert.Equal(t, KindCancelled, cancelled.Kind)

	transport := ClassifyHTTP("yahoo", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")})
	assert.Equal(t, KindTransport, transport.Kind)

	limited := ClassifyHTTP("yahoo", errors.New("HTTP 403 Forbidden"))
	assert.Equal(t, KindRateLimit, limited.Kind)
}
