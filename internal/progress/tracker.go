package progress

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Tracker is the Observer handed to a worker for one run. It counts ticks,
// remembers whether Done fired and forwards both as Events to an Emitter.
type Tracker struct {
	emitter Emitter
	runID   [16]byte
	kind    string
	now     func() time.Time

	startOnce sync.Once
	startedAt time.Time
	total     atomic.Int64
	ticks     atomic.Int64
	done      atomic.Bool

	finishOnce sync.Once
	outcome    Stage
}

// NewTracker returns a Tracker for run id. A nil emitter only counts.
func NewTracker(emitter Emitter, id uuid.UUID, kind string) *Tracker {
	if emitter == nil {
		emitter = EmitterFunc(func(Event) {})
	}
	return &Tracker{
		emitter: emitter,
		runID:   UUIDToBytes(id),
		kind:    kind,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start emits RUN_START with the batch size. Only the first call emits.
func (t *Tracker) Start(total int) {
	t.startOnce.Do(func() {
		t.startedAt = t.now()
		t.total.Store(int64(total))
		t.emitter.Emit(Event{
			RunID: t.runID,
			TS:    t.startedAt,
			Stage: StageRunStart,
			Kind:  t.kind,
			Total: total,
		})
	})
}

// Total returns the batch size passed to Start.
func (t *Tracker) Total() int { return int(t.total.Load()) }

// Tick counts one finished item.
func (t *Tracker) Tick() {
	t.ticks.Add(1)
	t.emitter.Emit(Event{
		RunID: t.runID,
		TS:    t.now(),
		Stage: StageTick,
		Kind:  t.kind,
		Ticks: 1,
	})
}

// Done records that the worker reported completion. The terminal event is
// emitted by Finish so that the run outcome is decided in one place.
func (t *Tracker) Done() {
	t.done.Store(true)
}

// Ticks returns the ticks seen so far.
func (t *Tracker) Ticks() int64 { return t.ticks.Load() }

// Completed reports whether Done fired.
func (t *Tracker) Completed() bool { return t.done.Load() }

// Finish emits the terminal event and returns its stage. A run error wins;
// a cancelled or never-completed run is RUN_CANCELED. Only the first call
// emits; later calls return the first outcome. A run that never started
// (for example because listing its batch failed) gets a RUN_START with a
// zero total first so that history stores see the run.
func (t *Tracker) Finish(runErr error, canceled bool) Stage {
	t.finishOnce.Do(func() {
		t.Start(0)
		stage := StageRunDone
		note := ""
		switch {
		case runErr != nil:
			stage = StageRunError
			note = runErr.Error()
		case canceled || !t.Completed():
			stage = StageRunCanceled
		}
		now := t.now()
		var dur time.Duration
		if now.After(t.startedAt) {
			dur = now.Sub(t.startedAt)
		}
		t.outcome = stage
		t.emitter.Emit(Event{
			RunID: t.runID,
			TS:    now,
			Stage: stage,
			Kind:  t.kind,
			Dur:   dur,
			Note:  note,
		})
	})
	return t.outcome
}
