package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnsupportedMIME is returned, without any network call, when a
	// provider cannot read the given document type.
	ErrUnsupportedMIME = errors.New("unsupported mime type")
	// ErrEmptyResponse is returned when a provider answers with no text.
	ErrEmptyResponse = errors.New("empty response")
)

// Extractor is one extraction provider. Implementations are safe for
// sequential use; the orchestrator never calls one concurrently.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, prompt string, document []byte, mimeType string) (string, error)
}

// AdapterError is the only error type providers return.
type AdapterError struct {
	Provider   string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *AdapterError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// RateLimited is true for 429 and for Anthropic's 529 "overloaded".
func (e *AdapterError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == 529
}

func NewAdapterError(provider string, status int, err error) *AdapterError {
	return &AdapterError{Provider: provider, StatusCode: status, Err: err}
}

// IsRateLimited reports whether err is a rate-limited AdapterError.
func IsRateLimited(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae) && ae.RateLimited()
}

// ParseRetryAfter reads a Retry-After header given either in seconds or as an HTTP date.
func ParseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// SupportsMIME checks mimeType against a provider's accepted types.
func SupportsMIME(mimeType string, accepted ...string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	for _, a := range accepted {
		if mt == a {
			return true
		}
	}
	return false
}
