package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/progress"
)

type fakeSource struct {
	mu         sync.Mutex
	items      []string
	pendingErr error
	failAt     int
	commitErr  error
	onCommit   func(ctx context.Context, item string)
	listed     int
	committed  []string
}

func (f *fakeSource) Pending(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	return f.items, nil
}

func (f *fakeSource) Commit(ctx context.Context, item string) error {
	f.mu.Lock()
	n := len(f.committed)
	f.mu.Unlock()
	if f.commitErr != nil && n == f.failAt {
		return f.commitErr
	}
	if f.onCommit != nil {
		f.onCommit(ctx, item)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, item)
	return nil
}

func (f *fakeSource) Committed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.committed...)
}

type startRecorder struct {
	progress.Counter
	totals []int
}

func (s *startRecorder) Start(total int) { s.totals = append(s.totals, total) }

func TestBatchWorkerTicksEveryItemThenDone(t *testing.T) {
	t.Parallel()

	src := &fakeSource{items: []string{"a", "b", "c"}}
	obs := &startRecorder{}
	var order []string
	observer := progress.Multi(obs, progress.Funcs{
		OnTick: func() { order = append(order, "tick") },
		OnDone: func() { order = append(order, "done") },
	})

	w := NewBatch[string]("words", src, observer, zap.NewNop())
	require.NoError(t, w.Run(context.Background()))

	require.Equal(t, []string{"a", "b", "c"}, src.Committed())
	require.EqualValues(t, 3, obs.Ticks())
	require.EqualValues(t, 1, obs.Dones())
	require.Equal(t, []int{3}, obs.totals)
	require.Equal(t, []string{"tick", "tick", "tick", "done"}, order)
}

func TestBatchWorkerEmptyBatchStillCompletes(t *testing.T) {
	t.Parallel()

	var obs progress.Counter
	w := NewBatch[string]("examples", &fakeSource{}, &obs, nil)
	require.NoError(t, w.Run(context.Background()))
	require.Zero(t, obs.Ticks())
	require.EqualValues(t, 1, obs.Dones())
}

func TestBatchWorkerCanceledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{items: []string{"a", "b"}}
	var obs progress.Counter
	w := NewBatch[string]("words", src, &obs, nil)

	require.NoError(t, w.Run(ctx))
	require.Zero(t, src.listed)
	require.Empty(t, src.Committed())
	require.Zero(t, obs.Ticks())
	require.Zero(t, obs.Dones())
}

func TestBatchWorkerStopsBetweenItems(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var commitCtxErrs []error
	src := &fakeSource{items: []string{"a", "b", "c", "d"}}
	src.onCommit = func(commitCtx context.Context, item string) {
		if item == "b" {
			cancel()
		}
		commitCtxErrs = append(commitCtxErrs, commitCtx.Err())
	}
	var obs progress.Counter
	w := NewBatch[string]("sentences", src, &obs, nil)

	require.NoError(t, w.Run(ctx))
	require.Equal(t, []string{"a", "b"}, src.Committed())
	require.EqualValues(t, 2, obs.Ticks(), "the item in progress when cancelled still finishes and ticks")
	require.Zero(t, obs.Dones())
	require.Equal(t, []error{nil, nil}, commitCtxErrs, "commits never see the cancellation")
}

func TestBatchWorkerFailsFast(t *testing.T) {
	t.Parallel()

	boom := errors.New("insert failed")
	src := &fakeSource{items: []string{"a", "b", "c"}, failAt: 1, commitErr: boom}
	var obs progress.Counter
	w := NewBatch[string]("words", src, &obs, nil)

	err := w.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "words: item 2 of 3")
	require.Equal(t, []string{"a"}, src.Committed())
	require.EqualValues(t, 1, obs.Ticks())
	require.Zero(t, obs.Dones())
}

func TestBatchWorkerPendingError(t *testing.T) {
	t.Parallel()

	boom := errors.New("remote unavailable")
	var obs startRecorder
	w := NewBatch[string]("words", &fakeSource{pendingErr: boom}, &obs, nil)

	err := w.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.Empty(t, obs.totals)
	require.Zero(t, obs.Dones())
}

type cancelingSource struct {
	cancel context.CancelFunc
}

func (c *cancelingSource) Pending(ctx context.Context) ([]string, error) {
	c.cancel()
	return nil, ctx.Err()
}

func (c *cancelingSource) Commit(context.Context, string) error { return nil }

func TestBatchWorkerPendingCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var obs progress.Counter
	w := NewBatch[string]("words", &cancelingSource{cancel: cancel}, &obs, nil)

	require.NoError(t, w.Run(ctx))
	require.Zero(t, obs.Dones())
}
