// Package pool bounds how many fetch tasks run at once.
//
// A Pool is created once and shared. Each worker run opens a Scope, submits
// tasks with Go and calls Wait before returning; Go blocks while every slot
// of the pool is taken.
package pool

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/vocabsync/internal/metrics"
)

// DefaultSize is the number of concurrent fetches used when none is configured.
const DefaultSize = 3

// Pool is a fixed-capacity slot set shared by every Scope created from it.
type Pool struct {
	size int
	sem  *semaphore.Weighted
}

// New returns a Pool with size slots; size < 1 falls back to DefaultSize.
func New(size int) *Pool {
	if size < 1 {
		size = DefaultSize
	}
	return &Pool{size: size, sem: semaphore.NewWeighted(int64(size))}
}

// Size returns the pool capacity.
func (p *Pool) Size() int {
	return p.size
}

// Scope groups the tasks of one worker run.
type Scope struct {
	pool  *Pool
	group errgroup.Group
}

// Scope opens a new task scope on p.
func (p *Pool) Scope() *Scope {
	return &Scope{pool: p}
}

// Go runs task on its own goroutine once a slot is free. It blocks the caller
// while the pool is full. Task panics are not recovered.
func (s *Scope) Go(task func()) {
	// Acquire with a background context never fails.
	_ = s.pool.sem.Acquire(context.Background(), 1)
	s.group.Go(func() error {
		metrics.IncInFlight()
		defer func() {
			metrics.DecInFlight()
			s.pool.sem.Release(1)
		}()
		task()
		return nil
	})
}

// Wait blocks until every task submitted to the scope has returned.
func (s *Scope) Wait() {
	_ = s.group.Wait()
}
