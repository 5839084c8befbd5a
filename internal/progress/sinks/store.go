package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/progress"
	"github.com/JakeFAU/vocabsync/internal/store"
)

// StoreSink persists run history through a store.RunRepository. Ticks are
// collapsed per run so each batch costs one write per run.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for repo.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume applies the batch in order: starts first as they appear, tick
// deltas before any terminal event of the same run.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	pending := make(map[uuid.UUID]*tickDelta)
	var order []uuid.UUID

	flushRun := func(id uuid.UUID) error {
		delta := pending[id]
		if delta == nil || delta.ticks == 0 {
			return nil
		}
		if err := s.repo.AddTicks(ctx, id, delta.ticks, delta.at); err != nil {
			return fmt.Errorf("add ticks: %w", err)
		}
		delta.ticks = 0
		return nil
	}

	for _, evt := range batch {
		id := evt.RunUUID()
		switch evt.Stage {
		case progress.StageRunStart:
			if err := s.repo.UpsertRunStart(ctx, id, evt.Kind, evt.Total, evt.TS); err != nil {
				return fmt.Errorf("upsert run start: %w", err)
			}
		case progress.StageTick:
			delta := pending[id]
			if delta == nil {
				delta = &tickDelta{}
				pending[id] = delta
				order = append(order, id)
			}
			delta.ticks += evt.Ticks
			if evt.TS.After(delta.at) {
				delta.at = evt.TS
			}
		case progress.StageRunDone, progress.StageRunError, progress.StageRunCanceled:
			if err := flushRun(id); err != nil {
				return err
			}
			if err := s.complete(ctx, id, evt); err != nil {
				return err
			}
		}
	}
	for _, id := range order {
		if err := flushRun(id); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) complete(ctx context.Context, id uuid.UUID, evt progress.Event) error {
	status := store.RunDone
	switch evt.Stage {
	case progress.StageRunError:
		status = store.RunFailed
	case progress.StageRunCanceled:
		status = store.RunCanceled
	}
	var note *string
	if evt.Note != "" {
		note = &evt.Note
	}
	if err := s.repo.CompleteRun(ctx, id, evt.TS, status, note); err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// Close implements progress.Sink.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

type tickDelta struct {
	ticks int64
	at    time.Time
}
