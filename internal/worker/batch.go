package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/progress"
)

// Source provides one batch of pending items and commits each of them.
type Source[T any] interface {
	// Pending lists every item needing work. It is called once per run.
	Pending(ctx context.Context) ([]T, error)
	// Commit performs the per-item operation.
	Commit(ctx context.Context, item T) error
}

// BatchWorker drives a Source sequentially.
type BatchWorker[T any] struct {
	name     string
	source   Source[T]
	observer progress.Observer
	logger   *zap.Logger
}

// NewBatch constructs a BatchWorker. name labels errors and logs.
func NewBatch[T any](name string, source Source[T], observer progress.Observer, logger *zap.Logger) *BatchWorker[T] {
	if observer == nil {
		observer = progress.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchWorker[T]{
		name:     name,
		source:   source,
		observer: observer,
		logger:   logger,
	}
}

// Run lists the batch and commits every item in order, ticking after each.
// Done fires after the last item. The first Commit error aborts the run and
// is returned without Done. When ctx is cancelled the run stops before the
// next item and returns nil without Done; a Commit already in progress runs
// to completion.
func (w *BatchWorker[T]) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		w.logger.Info("batch canceled before start", zap.String("kind", w.name))
		return nil
	}
	items, err := w.source.Pending(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%s: list pending: %w", w.name, err)
	}
	progress.StartOf(w.observer, len(items))
	w.logger.Info("batch started", zap.String("kind", w.name), zap.Int("items", len(items)))

	commitCtx := context.WithoutCancel(ctx)
	for i, item := range items {
		if ctx.Err() != nil {
			w.logger.Info("batch canceled",
				zap.String("kind", w.name),
				zap.Int("processed", i),
				zap.Int("items", len(items)),
			)
			return nil
		}
		if err := w.source.Commit(commitCtx, item); err != nil {
			return fmt.Errorf("%s: item %d of %d: %w", w.name, i+1, len(items), err)
		}
		w.observer.Tick()
	}
	w.observer.Done()
	w.logger.Info("batch finished", zap.String("kind", w.name), zap.Int("items", len(items)))
	return nil
}
