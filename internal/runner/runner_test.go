package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/progress"
)

type recorder struct {
	mu     sync.Mutex
	events []progress.Event
}

func (r *recorder) Emit(evt progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) stages() []progress.Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]progress.Stage, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Stage)
	}
	return out
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestStartRunsToCompletion(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	reg := New(rec, zap.NewNop())

	h, err := reg.Start(context.Background(), "words", func(_ context.Context, obs progress.Observer, _ *zap.Logger) error {
		progress.StartOf(obs, 2)
		obs.Tick()
		obs.Tick()
		obs.Done()
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, h.Wait())

	snap := h.Snapshot()
	assert.Equal(t, StateDone, snap.State)
	assert.Equal(t, int64(2), snap.Ticks)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, "words", snap.Kind)
	assert.NotNil(t, snap.FinishedAt)
	assert.Empty(t, snap.Error)
	assert.Equal(t, []progress.Stage{
		progress.StageRunStart,
		progress.StageTick,
		progress.StageTick,
		progress.StageRunDone,
	}, rec.stages())
}

func TestStartRecordsFailure(t *testing.T) {
	t.Parallel()

	reg := New(nil, nil)
	boom := errors.New("boom")
	h, err := reg.Start(context.Background(), "examples", func(context.Context, progress.Observer, *zap.Logger) error {
		return boom
	})
	require.NoError(t, err)
	require.ErrorIs(t, h.Wait(), boom)

	snap := h.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, "boom", snap.Error)
}

func TestStartRecoversPanic(t *testing.T) {
	t.Parallel()

	reg := New(nil, nil)
	h, err := reg.Start(context.Background(), "sentences", func(context.Context, progress.Observer, *zap.Logger) error {
		panic("kaboom")
	})
	require.NoError(t, err)
	err = h.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, StateFailed, h.Snapshot().State)
}

func TestCancelStopsRun(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	reg := New(rec, nil)
	started := make(chan struct{})
	h, err := reg.Start(context.Background(), "audio", func(ctx context.Context, obs progress.Observer, _ *zap.Logger) error {
		progress.StartOf(obs, 10)
		close(started)
		<-ctx.Done()
		return nil
	})
	require.NoError(t, err)
	<-started

	require.NoError(t, reg.Cancel(h.ID()))
	h.Cancel()
	waitDone(t, h)

	assert.NoError(t, h.Wait())
	assert.Equal(t, StateCanceled, h.Snapshot().State)
	stages := rec.stages()
	require.NotEmpty(t, stages)
	assert.Equal(t, progress.StageRunCanceled, stages[len(stages)-1])
}

func TestCancelUnknownRun(t *testing.T) {
	t.Parallel()

	reg := New(nil, nil)
	assert.ErrorIs(t, reg.Cancel(uuid.New()), ErrRunNotFound)
}

func TestStartRejectsConcurrentRunOfSameKind(t *testing.T) {
	t.Parallel()

	reg := New(nil, nil)
	release := make(chan struct{})
	first, err := reg.Start(context.Background(), "audio", func(context.Context, progress.Observer, *zap.Logger) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	_, err = reg.Start(context.Background(), "audio", func(context.Context, progress.Observer, *zap.Logger) error { return nil })
	require.ErrorIs(t, err, ErrAlreadyRunning)

	other, err := reg.Start(context.Background(), "words", func(_ context.Context, obs progress.Observer, _ *zap.Logger) error {
		obs.Done()
		return nil
	})
	require.NoError(t, err)
	waitDone(t, other)

	close(release)
	waitDone(t, first)

	again, err := reg.Start(context.Background(), "audio", func(_ context.Context, obs progress.Observer, _ *zap.Logger) error {
		obs.Done()
		return nil
	})
	require.NoError(t, err)
	waitDone(t, again)
}

func TestGetAndList(t *testing.T) {
	t.Parallel()

	reg := New(nil, nil)
	var ids []uuid.UUID
	for _, kind := range []string{"words", "examples", "sentences"} {
		h, err := reg.Start(context.Background(), kind, func(_ context.Context, obs progress.Observer, _ *zap.Logger) error {
			obs.Done()
			return nil
		})
		require.NoError(t, err)
		waitDone(t, h)
		ids = append(ids, h.ID())
	}

	got, ok := reg.Get(ids[1])
	require.True(t, ok)
	assert.Equal(t, "examples", got.Kind())

	_, ok = reg.Get(uuid.New())
	assert.False(t, ok)

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[0], list[2].ID)
}

func TestShutdownCancelsAndRefuses(t *testing.T) {
	t.Parallel()

	reg := New(nil, nil)
	started := make(chan struct{})
	h, err := reg.Start(context.Background(), "audio", func(ctx context.Context, _ progress.Observer, _ *zap.Logger) error {
		close(started)
		<-ctx.Done()
		return nil
	})
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, reg.Shutdown(ctx))
	assert.Equal(t, StateCanceled, h.Snapshot().State)

	_, err = reg.Start(context.Background(), "words", func(context.Context, progress.Observer, *zap.Logger) error { return nil })
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestShutdownHonorsDeadline(t *testing.T) {
	t.Parallel()

	reg := New(nil, nil)
	release := make(chan struct{})
	defer close(release)
	_, err := reg.Start(context.Background(), "audio", func(context.Context, progress.Observer, *zap.Logger) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, reg.Shutdown(ctx), context.DeadlineExceeded)
}

func TestStartSurfacesIDError(t *testing.T) {
	t.Parallel()

	reg := New(nil, nil)
	reg.newID = func() (uuid.UUID, error) { return uuid.Nil, errors.New("no entropy") }
	_, err := reg.Start(context.Background(), "words", func(context.Context, progress.Observer, *zap.Logger) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entropy")
}

func TestStartInheritsParentCancellation(t *testing.T) {
	t.Parallel()

	reg := New(nil, nil)
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	h, err := reg.Start(parent, "words", func(ctx context.Context, obs progress.Observer, _ *zap.Logger) error {
		if ctx.Err() != nil {
			return nil
		}
		obs.Done()
		return nil
	})
	require.NoError(t, err)
	waitDone(t, h)
	assert.Equal(t, StateCanceled, h.Snapshot().State)
}
