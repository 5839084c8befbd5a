package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"
)

// Errors surfaced by the fetch client.
var (
	ErrRetriesExhausted     = errors.New("fetch: retries exhausted")
	ErrMissingContentLength = errors.New("fetch: missing content length")
)

// RetryPolicy decides which responses are retried and how long to wait.
type RetryPolicy struct {
	// MaxAttempts counts the first request, so 5 means at most 4 retries.
	MaxAttempts int
	// BackoffBase is the wait after the first failed attempt; each later
	// wait doubles it.
	BackoffBase time.Duration
	// RetryableStatuses lists the status codes that trigger a retry.
	RetryableStatuses []int
}

// DefaultRetryPolicy returns 5 attempts with 3s,6s,12s,24s waits on
// 500/502/503/504.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BackoffBase: 3 * time.Second,
		RetryableStatuses: []int{
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// Retryable reports whether a response with this status should be retried.
func (p RetryPolicy) Retryable(code int) bool {
	return slices.Contains(p.RetryableStatuses, code)
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.BackoffBase <= 0 {
		return 0
	}
	return p.BackoffBase << (attempt - 1)
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// StatusError reports a response the caller cannot use.
type StatusError struct {
	URL        string
	StatusCode int
	// Attempts is the number of round trips made; zero when unknown.
	Attempts int
	// Exhausted is set when the status was retryable but the attempt
	// ceiling was reached.
	Exhausted bool
}

func (e *StatusError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("fetch %s: status %d after %d attempts", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Unwrap lets errors.Is match ErrRetriesExhausted.
func (e *StatusError) Unwrap() error {
	if e.Exhausted {
		return ErrRetriesExhausted
	}
	return nil
}
