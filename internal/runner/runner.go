// Package runner starts worker runs on their own goroutines and keeps a
// registry of them so they can be inspected and cancelled from outside.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/logging"
	"github.com/JakeFAU/vocabsync/internal/progress"
)

// Registry errors.
var (
	ErrRunNotFound    = errors.New("runner: run not found")
	ErrAlreadyRunning = errors.New("runner: a run of this kind is already running")
	ErrShuttingDown   = errors.New("runner: shutting down")
)

// Func is the body of a run. obs is the run's progress observer and logger
// is already scoped to the run.
type Func func(ctx context.Context, obs progress.Observer, logger *zap.Logger) error

// State is the lifecycle state of a run.
type State string

// Run states.
const (
	StateRunning  State = "running"
	StateDone     State = "done"
	StateCanceled State = "canceled"
	StateFailed   State = "failed"
)

// Snapshot is a point-in-time view of a run.
type Snapshot struct {
	ID         uuid.UUID  `json:"id"`
	Kind       string     `json:"kind"`
	State      State      `json:"state"`
	Ticks      int64      `json:"ticks"`
	Total      int        `json:"total"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Handle controls one run.
type Handle struct {
	id        uuid.UUID
	kind      string
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	tracker   *progress.Tracker

	mu         sync.Mutex
	state      State
	err        error
	finishedAt *time.Time
}

// ID returns the run identifier.
func (h *Handle) ID() uuid.UUID { return h.id }

// Kind returns the worker kind.
func (h *Handle) Kind() string { return h.kind }

// Cancel requests cancellation. It is idempotent and does not wait.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed once the run has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the run finishes and returns its error. A cancelled run
// returns nil.
func (h *Handle) Wait() error {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Snapshot returns the current view of the run.
func (h *Handle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap := Snapshot{
		ID:         h.id,
		Kind:       h.kind,
		State:      h.state,
		Ticks:      h.tracker.Ticks(),
		Total:      h.tracker.Total(),
		StartedAt:  h.startedAt,
		FinishedAt: h.finishedAt,
	}
	if h.err != nil {
		snap.Error = h.err.Error()
	}
	return snap
}

func (h *Handle) finish(state State, err error, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = state
	h.err = err
	h.finishedAt = &at
}

func (h *Handle) running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == StateRunning
}

// Registry tracks runs started through it. It is safe for concurrent use.
type Registry struct {
	emitter progress.Emitter
	logger  *zap.Logger
	newID   func() (uuid.UUID, error)

	mu       sync.Mutex
	runs     map[uuid.UUID]*Handle
	closing  bool
	inflight sync.WaitGroup
}

// New returns a Registry forwarding run events to emitter (which may be nil).
func New(emitter progress.Emitter, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		emitter: emitter,
		logger:  logger,
		newID:   uuid.NewV7,
		runs:    make(map[uuid.UUID]*Handle),
	}
}

// Start launches fn on its own goroutine. The run's context derives from
// parent, so cancelling parent cancels the run. Only one run per kind may be
// running at a time.
func (r *Registry) Start(parent context.Context, kind string, fn Func) (*Handle, error) {
	id, err := r.newID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return nil, ErrShuttingDown
	}
	for _, h := range r.runs {
		if h.kind == kind && h.running() {
			r.mu.Unlock()
			return nil, fmt.Errorf("%w: %s (%s)", ErrAlreadyRunning, kind, h.id)
		}
	}
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{
		id:        id,
		kind:      kind,
		startedAt: time.Now().UTC(),
		cancel:    cancel,
		done:      make(chan struct{}),
		tracker:   progress.NewTracker(r.emitter, id, kind),
		state:     StateRunning,
	}
	r.runs[id] = h
	r.inflight.Add(1)
	r.mu.Unlock()

	logger := logging.ForRun(r.logger, kind, id.String())
	go r.execute(ctx, h, fn, logger)
	return h, nil
}

func (r *Registry) execute(ctx context.Context, h *Handle, fn Func, logger *zap.Logger) {
	defer r.inflight.Done()
	defer close(h.done)
	defer h.cancel()

	logger.Info("run started")
	err := call(ctx, fn, h.tracker, logger)
	canceled := ctx.Err() != nil
	stage := h.tracker.Finish(err, canceled)
	state := stateFor(stage)
	h.finish(state, err, time.Now().UTC())

	fields := []zap.Field{
		zap.String("state", string(state)),
		zap.Int64("ticks", h.tracker.Ticks()),
		zap.Int("total", h.tracker.Total()),
	}
	if err != nil {
		logger.Error("run failed", append(fields, zap.Error(err))...)
		return
	}
	logger.Info("run finished", fields...)
}

func call(ctx context.Context, fn Func, obs progress.Observer, logger *zap.Logger) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("run panicked: %v", p)
		}
	}()
	return fn(ctx, obs, logger)
}

func stateFor(stage progress.Stage) State {
	switch stage {
	case progress.StageRunDone:
		return StateDone
	case progress.StageRunError:
		return StateFailed
	default:
		return StateCanceled
	}
}

// Get returns the handle for id.
func (r *Registry) Get(id uuid.UUID) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.runs[id]
	return h, ok
}

// List returns snapshots of every known run, newest first.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.runs))
	for _, h := range r.runs {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() > out[j].ID.String()
	})
	return out
}

// Cancel requests cancellation of run id.
func (r *Registry) Cancel(id uuid.UUID) error {
	h, ok := r.Get(id)
	if !ok {
		return ErrRunNotFound
	}
	h.Cancel()
	return nil
}

// Shutdown refuses new runs, cancels running ones and waits for them to
// return or for ctx to end.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	for _, h := range r.runs {
		h.Cancel()
	}
	r.mu.Unlock()

	waitCh := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("runner shutdown: %w", ctx.Err())
	}
}
