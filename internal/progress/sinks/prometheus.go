package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/vocabsync/internal/progress"
)

// PrometheusSink exports run counters and item ticks per worker kind.
type PrometheusSink struct {
	runsStarted  *prometheus.CounterVec
	runsFinished *prometheus.CounterVec
	runsActive   *prometheus.GaugeVec
	runDuration  *prometheus.HistogramVec
	itemsTotal   *prometheus.CounterVec

	mu     sync.Mutex
	active map[[16]byte]string
}

// NewPrometheusSink registers the collectors against reg, or the default
// registerer when reg is nil.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vocabsync_runs_started_total",
			Help: "Worker runs started, by kind.",
		}, []string{"kind"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vocabsync_runs_finished_total",
			Help: "Worker runs finished, by kind and result.",
		}, []string{"kind", "result"}),
		runsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vocabsync_runs_active",
			Help: "Worker runs currently executing, by kind.",
		}, []string{"kind"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vocabsync_run_duration_seconds",
			Help:    "Wall time per finished run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"kind", "result"}),
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vocabsync_items_processed_total",
			Help: "Items ticked by workers, by kind.",
		}, []string{"kind"}),
		active: make(map[[16]byte]string),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsFinished,
		s.runsActive,
		s.runDuration,
		s.itemsTotal,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	kind := s.kindOf(evt)
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.WithLabelValues(kind).Inc()
		if s.begin(evt.RunID, kind) {
			s.runsActive.WithLabelValues(kind).Inc()
		}
	case progress.StageTick:
		s.itemsTotal.WithLabelValues(kind).Add(float64(evt.Ticks))
	case progress.StageRunDone, progress.StageRunError, progress.StageRunCanceled:
		result := resultLabel(evt.Stage)
		s.runsFinished.WithLabelValues(kind, result).Inc()
		if evt.Dur > 0 {
			s.runDuration.WithLabelValues(kind, result).Observe(evt.Dur.Seconds())
		}
		if s.end(evt.RunID) {
			s.runsActive.WithLabelValues(kind).Dec()
		}
	}
}

// Close implements progress.Sink.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func (s *PrometheusSink) kindOf(evt progress.Event) string {
	if evt.Kind != "" {
		return evt.Kind
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind, ok := s.active[evt.RunID]; ok {
		return kind
	}
	return "unknown"
}

func (s *PrometheusSink) begin(id [16]byte, kind string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[id]; ok {
		return false
	}
	s.active[id] = kind
	return true
}

func (s *PrometheusSink) end(id [16]byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[id]; !ok {
		return false
	}
	delete(s.active, id)
	return true
}

func resultLabel(stage progress.Stage) string {
	switch stage {
	case progress.StageRunDone:
		return "done"
	case progress.StageRunError:
		return "failed"
	default:
		return "canceled"
	}
}
