// Package metrics exposes process-wide Prometheus collectors for vocabsync.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Audio outcomes recorded by ObserveAudio.
const (
	OutcomeFetched  = "fetched"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

var (
	fetchAttemptsTotal     *prometheus.CounterVec
	fetchRetriesTotal      *prometheus.CounterVec
	rateLimitDelaySeconds  *prometheus.HistogramVec
	poolInFlight           prometheus.Gauge
	audioOutcomesTotal     *prometheus.CounterVec
	audioBytesWrittenTotal prometheus.Counter
	httpRequestsTotal      *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocabsync_fetch_attempts_total",
				Help: "HTTP fetch attempts, labeled by host and status code (\"error\" for transport failures).",
			},
			[]string{"host", "code"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocabsync_fetch_retries_total",
				Help: "Retries scheduled after a retryable status, labeled by host.",
			},
			[]string{"host"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vocabsync_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"host"},
		)

		poolInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vocabsync_pool_tasks_in_flight",
				Help: "Tasks currently executing inside bounded pools.",
			},
		)

		audioOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocabsync_audio_items_total",
				Help: "Audio items processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		audioBytesWrittenTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vocabsync_audio_bytes_written_total",
				Help: "Bytes written to audio destination files.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vocabsync_api_requests_total",
				Help: "Control API requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vocabsync_api_request_duration_seconds",
				Help:    "Control API latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Host extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func Host(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetchAttempt counts one round trip. code is 0 for transport errors.
func ObserveFetchAttempt(host string, code int) {
	Init()
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	fetchAttemptsTotal.WithLabelValues(host, label).Inc()
}

// ObserveRetry counts a scheduled retry.
func ObserveRetry(host string) {
	Init()
	fetchRetriesTotal.WithLabelValues(host).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}

// IncInFlight increments the pool in-flight gauge.
func IncInFlight() {
	Init()
	poolInFlight.Inc()
}

// DecInFlight decrements the pool in-flight gauge.
func DecInFlight() {
	Init()
	poolInFlight.Dec()
}

// ObserveAudio counts one audio item outcome and the bytes it wrote.
func ObserveAudio(outcome string, written int64) {
	Init()
	audioOutcomesTotal.WithLabelValues(outcome).Inc()
	if written > 0 {
		audioBytesWrittenTotal.Add(float64(written))
	}
}

// ObserveHTTPRequest records one control API request.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
