package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Kind classifies a fetch failure. The manager's failover and the retry
// engine both key off this classification, never off error text.
type Kind int

const (
	// KindTransport covers connection refused, DNS, TLS and timeouts.
	// Only this kind is retried.
	KindTransport Kind = iota
	// KindRateLimit means the upstream explicitly signalled throttling.
	// Surfaced immediately; the manager puts the source in cool-down.
	KindRateLimit
	// KindParse means the response shape was unexpected.
	KindParse
	// KindEmpty means a successful response with zero rows.
	KindEmpty
	// KindNotConfigured means a credential or session client is missing.
	KindNotConfigured
	// KindExhausted means every candidate source failed.
	KindExhausted
	// KindCancelled means the caller cancelled the request.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRateLimit:
		return "rate_limit"
	case KindParse:
		return "parse"
	case KindEmpty:
		return "empty"
	case KindNotConfigured:
		return "not_configured"
	case KindExhausted:
		return "all_sources_exhausted"
	case KindCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Error is a classified fetch failure attributed to one source.
type Error struct {
	Kind   Kind
	Source string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Source, e.Msg, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Source, e.Msg, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error for one source.
func NewError(kind Kind, source, msg string, err error) *Error {
	return &Error{Kind: kind, Source: source, Msg: msg, Err: err}
}

// KindOf extracts the classification from err, defaulting to KindTransport
// for unclassified failures so the retry engine stays conservative.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindTransport
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// banKeywords are substrings upstreams use when refusing over-eager clients.
var banKeywords = []string{"banned", "blocked", "rate", "limit", "forbidden", "403", "429"}

// LooksRateLimited sniffs an error or response snippet for explicit
// throttling signals.
func LooksRateLimited(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range banKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ClassifyStatus maps an HTTP status into the taxonomy. 403 and 429 are the
// ban signals mainland endpoints use; other non-2xx codes count as transport
// failures so the retry engine may take another shot.
func ClassifyStatus(source string, status int) *Error {
	switch {
	case status == 403 || status == 429:
		return NewError(KindRateLimit, source, fmt.Sprintf("upstream throttling (HTTP %d)", status), nil)
	case status >= 300:
		return NewError(KindTransport, source, fmt.Sprintf("unexpected HTTP %d", status), nil)
	}
	return nil
}

// ClassifyHTTP maps a transport-level error from the HTTP client into the
// taxonomy. Status-code classification happens at the adapter where the
// response is in hand.
func ClassifyHTTP(source string, err error) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindCancelled, source, "request cancelled", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewError(KindTransport, source, "request timed out", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return NewError(KindTransport, source, "http transport failure", err)
	}
	if LooksRateLimited(err.Error()) {
		return NewError(KindRateLimit, source, "upstream throttling detected", err)
	}
	return NewError(KindTransport, source, "request failed", err)
}
