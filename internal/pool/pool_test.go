package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultsSize(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultSize, New(0).Size())
	require.Equal(t, 7, New(7).Size())
}

func TestScopeBoundsConcurrency(t *testing.T) {
	t.Parallel()

	p := New(3)
	scope := p.Scope()
	var (
		current atomic.Int32
		peak    atomic.Int32
		ran     atomic.Int32
	)
	for range 20 {
		scope.Go(func() {
			n := current.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			ran.Add(1)
		})
	}
	scope.Wait()

	require.EqualValues(t, 20, ran.Load())
	require.LessOrEqual(t, peak.Load(), int32(3))
	require.Positive(t, peak.Load())
}

func TestGoBlocksWhilePoolIsFull(t *testing.T) {
	t.Parallel()

	p := New(1)
	scope := p.Scope()
	release := make(chan struct{})
	scope.Go(func() { <-release })

	submitted := make(chan struct{})
	go func() {
		scope.Go(func() {})
		close(submitted)
	}()

	select {
	case <-submitted:
		t.Fatal("second submission should block while the only slot is busy")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	require.Eventually(t, func() bool {
		select {
		case <-submitted:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	scope.Wait()
}

func TestScopesShareThePool(t *testing.T) {
	t.Parallel()

	p := New(2)
	var (
		mu      sync.Mutex
		current int
		peak    int
	)
	task := func() {
		mu.Lock()
		current++
		if current > peak {
			peak = current
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		current--
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := p.Scope()
			for range 5 {
				s.Go(task)
			}
			s.Wait()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.LessOrEqual(t, peak, 2)
}

func TestWaitOnEmptyScope(t *testing.T) {
	t.Parallel()

	require.NotPanics(t, func() { New(1).Scope().Wait() })
}
