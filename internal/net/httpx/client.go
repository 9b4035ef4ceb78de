// Package httpx is the shared outbound HTTP layer: one pooled client with
// browser-like headers, User-Agent rotation and a per-host request ceiling.
// The ceiling is a safety net under the per-adapter pacers so that batch
// fan-out cannot hammer a single host.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"
)

// userAgents is the rotation pool attached to every request.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
}

// RandomUserAgent picks one UA from the pool.
func RandomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// Client wraps an http.Client with per-host token-bucket ceilings.
type Client struct {
	http *http.Client

	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// Option mutates a Client at construction time.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHostCeiling sets the per-host requests-per-second ceiling.
func WithHostCeiling(rps float64, burst int) Option {
	return func(c *Client) {
		c.rps = rps
		c.burst = burst
	}
}

// New builds a client. Default timeout is 10s with a 10 rps / burst 5
// per-host ceiling.
func New(opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 10 * time.Second},
		limiters: make(map[string]*rate.Limiter),
		rps:      10,
		burst:    5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.mu.RLock()
	lim, ok := c.limiters[host]
	c.mu.RUnlock()
	if ok {
		return lim
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if lim, ok = c.limiters[host]; ok {
		return lim
	}
	lim = rate.NewLimiter(rate.Limit(c.rps), c.burst)
	c.limiters[host] = lim
	return lim
}

// Do sends the request after clearing the per-host ceiling, attaching the
// rotated User-Agent and browser headers when absent.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter(req.URL.Host).Wait(req.Context()); err != nil {
		return nil, err
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", RandomUserAgent())
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "*/*")
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	}
	return c.http.Do(req)
}

// GetText issues a GET and returns the body as a string. Bodies from the
// mainland quote endpoints arrive GB18030-encoded; set gbk to transcode.
func (c *Client) GetText(ctx context.Context, url string, gbk bool, headers map[string]string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if gbk {
		body = transform.NewReader(resp.Body, simplifiedchinese.GB18030.NewDecoder())
	}
	raw, err := io.ReadAll(io.LimitReader(body, 8<<20))
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return string(raw), resp.StatusCode, nil
}

// PostJSON issues a POST with a JSON body and decodes the JSON response
// into out.
func (c *Client) PostJSON(ctx context.Context, url string, payload, out any) (int, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
