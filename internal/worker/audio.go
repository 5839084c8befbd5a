package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/fetch"
	"github.com/JakeFAU/vocabsync/internal/metrics"
	"github.com/JakeFAU/vocabsync/internal/pool"
	"github.com/JakeFAU/vocabsync/internal/progress"
	"github.com/JakeFAU/vocabsync/internal/vocab"
)

// DefaultChunkSize is the write size used when streaming a body to disk.
const DefaultChunkSize = 1024

// AudioConfig tunes the audio worker.
type AudioConfig struct {
	// ChunkSize is the size of each disk write.
	ChunkSize int
	// Header is added to every request.
	Header http.Header
}

// AudioSummary counts per-item outcomes of one run. Fetched, Skipped and
// Failed items ticked; Canceled items did not start and did not tick.
type AudioSummary struct {
	Fetched  int
	Skipped  int
	Failed   int
	Canceled int
	// Bytes is the total written to disk.
	Bytes int64
}

// Ticked returns the number of items that emitted a tick.
func (s AudioSummary) Ticked() int {
	return s.Fetched + s.Skipped + s.Failed
}

// AudioWorker downloads pronunciation files. An existing file whose size
// matches the declared Content-Length is left untouched; anything else is
// overwritten.
type AudioWorker struct {
	items    []vocab.AudioItem
	client   *http.Client
	pool     *pool.Pool
	observer progress.Observer
	cfg      AudioConfig
	logger   *zap.Logger
}

// NewAudio constructs an AudioWorker for items. client and p are shared and
// must outlive the run.
func NewAudio(
	items []vocab.AudioItem,
	client *http.Client,
	p *pool.Pool,
	observer progress.Observer,
	cfg AudioConfig,
	logger *zap.Logger,
) *AudioWorker {
	if observer == nil {
		observer = progress.Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if p == nil {
		p = pool.New(pool.DefaultSize)
	}
	return &AudioWorker{
		items:    append([]vocab.AudioItem(nil), items...),
		client:   client,
		pool:     p,
		observer: observer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run submits one task per item to the pool and waits for all of them. Done
// fires once every submitted task has returned, including after a
// cancellation. Items without a path or URL, and later items repeating an
// earlier destination, fail on their own without a fetch. The error is
// non-nil only when the worker has no client.
func (w *AudioWorker) Run(ctx context.Context) (AudioSummary, error) {
	if w.client == nil {
		return AudioSummary{}, errors.New("audio: http client is required")
	}
	invalid := checkItems(w.items)
	progress.StartOf(w.observer, len(w.items))
	w.logger.Info("audio batch started",
		zap.Int("items", len(w.items)),
		zap.Int("concurrency", w.pool.Size()),
	)

	var t tally
	scope := w.pool.Scope()
	for i, item := range w.items {
		if ctx.Err() != nil {
			t.record(metrics.OutcomeCanceled, 0)
			continue
		}
		itemErr := invalid[i]
		scope.Go(func() {
			w.runTask(ctx, item, itemErr, &t)
		})
	}
	scope.Wait()
	w.observer.Done()

	sum := t.summary()
	w.logger.Info("audio batch finished",
		zap.Int("fetched", sum.Fetched),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Int("canceled", sum.Canceled),
		zap.Int64("bytes", sum.Bytes),
	)
	return sum, nil
}

// runTask handles one item. itemErr marks an item that is failed without
// being fetched.
func (w *AudioWorker) runTask(ctx context.Context, item vocab.AudioItem, itemErr error, t *tally) {
	if ctx.Err() != nil {
		t.record(metrics.OutcomeCanceled, 0)
		return
	}
	var (
		outcome string
		written int64
		err     = itemErr
	)
	if err == nil {
		outcome, written, err = w.download(context.WithoutCancel(ctx), item)
	}
	if err != nil {
		outcome = metrics.OutcomeFailed
		w.logger.Warn("audio download failed",
			zap.String("path", item.Path),
			zap.String("url", item.URL),
			zap.Int64("written", written),
			zap.Error(err),
		)
	}
	t.record(outcome, written)
	w.observer.Tick()
}

func (w *AudioWorker) download(ctx context.Context, item vocab.AudioItem) (string, int64, error) {
	resp, err := fetch.Get(ctx, w.client, item.URL, w.cfg.Header)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	size, err := fetch.DeclaredLength(resp)
	if err != nil {
		return "", 0, err
	}
	if complete(item.Path, size) {
		w.logger.Info("audio already present", zap.String("path", item.Path), zap.Int64("size", size))
		return metrics.OutcomeSkipped, 0, nil
	}

	written, err := writeChunked(item.Path, resp.Body, w.cfg.ChunkSize)
	if err != nil {
		return "", written, err
	}
	w.logger.Info("audio downloaded", zap.String("path", item.Path), zap.Int64("bytes", written))
	return metrics.OutcomeFetched, written, nil
}

// complete reports whether path is a regular file of exactly size bytes.
func complete(path string, size int64) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() == size
}

// writeChunked truncates path and copies body into it chunk bytes at a time.
func writeChunked(path string, body io.Reader, chunk int) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create audio dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}

	buf := make([]byte, chunk)
	var written int64
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			m, writeErr := f.Write(buf[:n])
			written += int64(m)
			if writeErr != nil {
				_ = f.Close()
				return written, fmt.Errorf("write %s: %w", path, writeErr)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			_ = f.Close()
			return written, fmt.Errorf("read body: %w", readErr)
		}
	}
	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close %s: %w", path, err)
	}
	return written, nil
}

var (
	errIncompleteItem = errors.New("path and url are required")
	errDuplicateDest  = errors.New("destination already claimed by an earlier item")
)

// checkItems returns, per item, the reason it cannot be fetched or nil.
// The first item naming a destination keeps it.
func checkItems(items []vocab.AudioItem) []error {
	out := make([]error, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		if item.Path == "" || item.URL == "" {
			out[i] = errIncompleteItem
			continue
		}
		clean := filepath.Clean(item.Path)
		if _, dup := seen[clean]; dup {
			out[i] = errDuplicateDest
			continue
		}
		seen[clean] = struct{}{}
	}
	return out
}

type tally struct {
	fetched  atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64
	canceled atomic.Int64
	bytes    atomic.Int64
}

func (t *tally) record(outcome string, written int64) {
	switch outcome {
	case metrics.OutcomeFetched:
		t.fetched.Add(1)
	case metrics.OutcomeSkipped:
		t.skipped.Add(1)
	case metrics.OutcomeCanceled:
		t.canceled.Add(1)
	default:
		t.failed.Add(1)
	}
	t.bytes.Add(written)
	metrics.ObserveAudio(outcome, written)
}

func (t *tally) summary() AudioSummary {
	return AudioSummary{
		Fetched:  int(t.fetched.Load()),
		Skipped:  int(t.skipped.Load()),
		Failed:   int(t.failed.Load()),
		Canceled: int(t.canceled.Load()),
		Bytes:    t.bytes.Load(),
	}
}
