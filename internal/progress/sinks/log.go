package sinks

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/progress"
)

// LogSink writes run lifecycle events to a zap logger. Ticks are logged at
// debug so a large batch does not flood production logs.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", uuid.UUID(evt.RunID).String()),
			zap.String("kind", evt.Kind),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageTick:
			s.logger.Debug("run tick", append(fields, zap.Int64("ticks", evt.Ticks))...)
		case progress.StageRunStart:
			s.logger.Info("run started", append(fields, zap.Int("total", evt.Total))...)
		case progress.StageRunError:
			s.logger.Warn("run failed", append(fields, zap.Duration("dur", evt.Dur), zap.String("note", evt.Note))...)
		default:
			s.logger.Info("run finished", append(fields, zap.Duration("dur", evt.Dur))...)
		}
	}
	return nil
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
