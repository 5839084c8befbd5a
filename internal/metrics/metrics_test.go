package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHost(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/a.mp3", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Host(tc.input); got != tc.expected {
				t.Errorf("Host(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveCounters(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(audioOutcomesTotal.WithLabelValues(OutcomeSkipped))
	ObserveAudio(OutcomeSkipped, 0)
	if got := testutil.ToFloat64(audioOutcomesTotal.WithLabelValues(OutcomeSkipped)); got != before+1 {
		t.Fatalf("expected skipped counter to grow by one, got %f -> %f", before, got)
	}

	bytesBefore := testutil.ToFloat64(audioBytesWrittenTotal)
	ObserveAudio(OutcomeFetched, 100)
	if got := testutil.ToFloat64(audioBytesWrittenTotal); got != bytesBefore+100 {
		t.Fatalf("expected 100 more bytes, got %f -> %f", bytesBefore, got)
	}

	ObserveFetchAttempt("metrics.test", 0)
	if got := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("metrics.test", "error")); got != 1 {
		t.Fatalf("expected one transport error attempt, got %f", got)
	}

	IncInFlight()
	DecInFlight()
	if got := testutil.ToFloat64(poolInFlight); got < 0 {
		t.Fatalf("in-flight gauge went negative: %f", got)
	}
}
