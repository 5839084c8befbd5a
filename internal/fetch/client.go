package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/metrics"
)

// SleepFunc waits for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures the shared client.
type Options struct {
	// Timeout bounds dialing and waiting for response headers on each
	// attempt. It does not cover backoff waits or body streaming.
	Timeout time.Duration
	// HostRPS enables a per-host token bucket when positive.
	HostRPS float64
	// UserAgent is sent when the request does not set its own.
	UserAgent string
	Logger    *zap.Logger
	// Base overrides the underlying transport.
	Base http.RoundTripper
	// Sleep overrides the backoff wait.
	Sleep SleepFunc
}

// Transport is an http.RoundTripper that retries responses whose status is in
// the policy's retryable set.
type Transport struct {
	base      http.RoundTripper
	policy    RetryPolicy
	limiter   *hostLimiter
	userAgent string
	sleep     SleepFunc
	logger    *zap.Logger
}

// NewTransport wraps opts.Base (or a pooled default transport) with retries.
func NewTransport(policy RetryPolicy, opts Options) *Transport {
	base := opts.Base
	if base == nil {
		base = newHTTPTransport(opts.Timeout)
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		base:      base,
		policy:    policy,
		limiter:   newHostLimiter(opts.HostRPS),
		userAgent: opts.UserAgent,
		sleep:     sleep,
		logger:    logger,
	}
}

// NewClient builds the process-wide client. Client.Timeout is left unset so a
// streamed body is never cut off and backoff waits are not charged against a
// request deadline; per-attempt limits come from the transport.
func NewClient(policy RetryPolicy, opts Options) *http.Client {
	return &http.Client{Transport: NewTransport(policy, opts)}
}

// RoundTrip sends req, retrying on retryable statuses.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	host := req.URL.Hostname()
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(ctx)
		req.Header.Set("User-Agent", t.userAgent)
	}

	maxAttempts := t.policy.attempts()
	for attempt := 1; ; attempt++ {
		if attempt > 1 {
			var err error
			if req, err = rewind(req); err != nil {
				return nil, err
			}
		}
		if err := t.limiter.wait(ctx, host); err != nil {
			return nil, err
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			metrics.ObserveFetchAttempt(host, 0)
			return nil, err
		}
		metrics.ObserveFetchAttempt(host, resp.StatusCode)
		if !t.policy.Retryable(resp.StatusCode) {
			return resp, nil
		}
		discard(resp)

		if attempt >= maxAttempts {
			return nil, &StatusError{
				URL:        req.URL.String(),
				StatusCode: resp.StatusCode,
				Attempts:   attempt,
				Exhausted:  true,
			}
		}

		delay := t.policy.Backoff(attempt)
		t.logger.Debug("retrying request",
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
		)
		metrics.ObserveRetry(host)
		if err := t.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("retry backoff: %w", err)
		}
	}
}

// Get issues a GET and returns the response only for 2xx statuses. Any other
// status closes the body and returns a *StatusError.
func Get(ctx context.Context, client *http.Client, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		discard(resp)
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// DeclaredLength returns the response Content-Length, or
// ErrMissingContentLength when the server did not declare one.
func DeclaredLength(resp *http.Response) (int64, error) {
	if resp.ContentLength < 0 {
		return 0, ErrMissingContentLength
	}
	return resp.ContentLength, nil
}

func rewind(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("retry %s: request body cannot be replayed", req.URL)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewind request body: %w", err)
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// newHTTPTransport returns the default base transport. Compression stays
// off so responses keep the server's Content-Length.
func newHTTPTransport(timeout time.Duration) *http.Transport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
	}
}
