package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested run does not exist.
var ErrNotFound = errors.New("run record not found")

// RunStatus mirrors the worker_runs status column.
type RunStatus string

// Run statuses persisted in worker_runs.status.
const (
	RunRunning  RunStatus = "running"
	RunDone     RunStatus = "done"
	RunCanceled RunStatus = "canceled"
	RunFailed   RunStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s RunStatus) Valid() bool {
	switch s {
	case RunRunning, RunDone, RunCanceled, RunFailed:
		return true
	default:
		return false
	}
}

// Run is one recorded worker run.
type Run struct {
	ID    uuid.UUID
	Kind  string
	Total int
	Ticks int64
	// Status is running until CompleteRun is called.
	Status    RunStatus
	StartedAt time.Time
	// FinishedAt is nil while the run is running.
	FinishedAt   *time.Time
	ErrorMessage *string
}

// RunRepository records worker runs for observability. It is never used to
// resume work.
type RunRepository interface {
	// UpsertRunStart inserts the run, or refreshes kind/total/started_at if it exists.
	UpsertRunStart(ctx context.Context, id uuid.UUID, kind string, total int, startedAt time.Time) error
	// AddTicks increments the tick counter by delta.
	AddTicks(ctx context.Context, id uuid.UUID, delta int64, at time.Time) error
	// CompleteRun marks the run finished with status and optional error text.
	CompleteRun(ctx context.Context, id uuid.UUID, finishedAt time.Time, status RunStatus, errMsg *string) error
	// GetRun loads one run or returns ErrNotFound.
	GetRun(ctx context.Context, id uuid.UUID) (Run, error)
	// ListRuns returns runs newest first, optionally filtered by status.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]Run, error)
}
