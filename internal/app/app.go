// Package app builds and holds the long-lived services of a vocabsync
// process, acting as its dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/api"
	"github.com/JakeFAU/vocabsync/internal/config"
	"github.com/JakeFAU/vocabsync/internal/dictionary"
	"github.com/JakeFAU/vocabsync/internal/fetch"
	"github.com/JakeFAU/vocabsync/internal/pool"
	"github.com/JakeFAU/vocabsync/internal/progress"
	progresssinks "github.com/JakeFAU/vocabsync/internal/progress/sinks"
	"github.com/JakeFAU/vocabsync/internal/runner"
	"github.com/JakeFAU/vocabsync/internal/storage/memory"
	pgstore "github.com/JakeFAU/vocabsync/internal/storage/postgres"
	"github.com/JakeFAU/vocabsync/internal/storage/sqlite"
	"github.com/JakeFAU/vocabsync/internal/store"
	"github.com/JakeFAU/vocabsync/internal/vocab"
	"github.com/JakeFAU/vocabsync/internal/worker"
)

// Worker kinds.
const (
	KindWords     = "words"
	KindExamples  = "examples"
	KindSentences = "sentences"
	KindAudio     = "audio"
)

// ErrNoDictionary is returned by dictionary-backed commands when
// dictionary.base_url is unset.
var ErrNoDictionary = errors.New("dictionary.base_url is not configured")

// Options carries process-level collaborators that tests replace.
type Options struct {
	Logger *zap.Logger
	// Registerer receives the progress collectors. Nil means the default
	// Prometheus registerer.
	Registerer prometheus.Registerer
	// Base overrides the fetch client's underlying transport.
	Base http.RoundTripper
}

// App holds the shared services of one process.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	client     *http.Client
	pool       *pool.Pool
	vocab      *sqlite.Store
	dict       *dictionary.Client
	credential vocab.Credential
	history    store.RunRepository
	pgHistory  *pgstore.RunStore
	hub        *progress.Hub
	registry   *runner.Registry
}

// Build creates the application's dependencies. It fails fast if any of
// them cannot be initialized.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}
	a.logger.Info("building application dependencies",
		zap.String("sqlite_path", cfg.Store.SQLitePath),
		zap.String("audio_dir", cfg.Audio.Dir),
		zap.Int("audio_concurrency", cfg.Audio.Concurrency),
		zap.Bool("run_history_postgres", cfg.Store.PostgresDSN != ""),
	)

	policy := fetch.RetryPolicy{
		MaxAttempts:       cfg.HTTP.MaxAttempts,
		BackoffBase:       cfg.BackoffBase(),
		RetryableStatuses: cfg.HTTP.RetryStatuses,
	}
	a.client = fetch.NewClient(policy, fetch.Options{
		Timeout:   cfg.RequestTimeout(),
		HostRPS:   cfg.HTTP.HostRPS,
		UserAgent: cfg.HTTP.UserAgent,
		Logger:    logger.Named("fetch"),
		Base:      opts.Base,
	})
	a.pool = pool.New(cfg.Audio.Concurrency)

	var err error
	a.vocab, err = sqlite.Open(ctx, cfg.Store.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("vocabulary store init failed: %w", err)
	}

	if err := a.setupDictionary(); err != nil {
		a.closeStores()
		return nil, err
	}
	if err := a.setupHistory(ctx); err != nil {
		a.closeStores()
		return nil, err
	}
	if err := a.setupProgress(opts.Registerer); err != nil {
		a.closeStores()
		return nil, err
	}
	a.registry = runner.New(a.hub, logger.Named("runner"))
	return a, nil
}

func (a *App) setupDictionary() error {
	cred, err := dictionary.LoadCredential(a.cfg.Dictionary.CookieFile)
	if err != nil {
		return fmt.Errorf("credential load failed: %w", err)
	}
	a.credential = cred
	if a.cfg.Dictionary.BaseURL == "" {
		a.logger.Warn("no dictionary.base_url configured, only the audio worker is available")
		return nil
	}
	a.dict, err = dictionary.New(a.cfg.Dictionary.BaseURL, a.client, cred, a.logger.Named("dictionary"))
	if err != nil {
		return fmt.Errorf("dictionary client init failed: %w", err)
	}
	return nil
}

func (a *App) setupHistory(ctx context.Context) error {
	if a.cfg.Store.PostgresDSN == "" {
		a.logger.Info("using in-memory run history")
		a.history = memory.NewRunStore()
		return nil
	}
	pg, err := pgstore.NewRunStore(ctx, pgstore.RunStoreConfig{DSN: a.cfg.Store.PostgresDSN})
	if err != nil {
		return fmt.Errorf("run history init failed: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return fmt.Errorf("run history schema failed: %w", err)
	}
	a.logger.Info("using postgres run history")
	a.pgHistory = pg
	a.history = pg
	return nil
}

func (a *App) setupProgress(reg prometheus.Registerer) error {
	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("progress metrics init failed: %w", err)
	}
	hubCfg := progress.HubConfig{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   a.cfg.BatchWait(),
		Logger:         a.logger.Named("progress_hub"),
	}
	a.hub = progress.NewHub(hubCfg,
		progresssinks.NewLogSink(a.logger.Named("progress_log")),
		promSink,
		progresssinks.NewStoreSink(a.history, a.logger.Named("progress_store")),
	)
	a.logger.Debug("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return nil
}

// Logger returns the process logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Registry returns the run registry.
func (a *App) Registry() *runner.Registry { return a.registry }

// History returns the run history repository.
func (a *App) History() store.RunRepository { return a.history }

// Counts reports local vocabulary totals.
func (a *App) Counts(ctx context.Context) (sqlite.Counts, error) {
	return a.vocab.Counts(ctx)
}

// Jobs returns the worker kinds this process can run. Dictionary-backed
// kinds are present only when a dictionary is configured.
func (a *App) Jobs() api.Jobs {
	jobs := api.Jobs{KindAudio: a.runAudio}
	if a.dict != nil {
		jobs[KindWords] = a.runWords
		jobs[KindExamples] = a.runExamples
		jobs[KindSentences] = a.runSentences
	}
	return jobs
}

func (a *App) runWords(ctx context.Context, obs progress.Observer, logger *zap.Logger) error {
	return worker.NewBatch[vocab.Word](KindWords, vocab.NewWordSource(a.dict, a.vocab), obs, logger).Run(ctx)
}

func (a *App) runExamples(ctx context.Context, obs progress.Observer, logger *zap.Logger) error {
	return worker.NewBatch[vocab.WordRef](KindExamples, vocab.NewExampleSource(a.dict, a.vocab), obs, logger).Run(ctx)
}

func (a *App) runSentences(ctx context.Context, obs progress.Observer, logger *zap.Logger) error {
	return worker.NewBatch[vocab.Sentence](KindSentences, vocab.NewSentenceSource(a.dict, a.vocab), obs, logger).Run(ctx)
}

func (a *App) runAudio(ctx context.Context, obs progress.Observer, logger *zap.Logger) error {
	items, err := vocab.LoadAudioItems(ctx, a.vocab, a.cfg.Audio.Dir)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("%s: list pending: %w", KindAudio, err)
	}
	// Audio URLs may point at any host, so the session cookie stays with
	// the dictionary client.
	w := worker.NewAudio(items, a.client, a.pool, obs, worker.AudioConfig{
		ChunkSize: a.cfg.Audio.ChunkSize,
	}, logger)
	_, err = w.Run(ctx)
	return err
}

// RunJob starts kind through the registry and blocks until it finishes.
// Cancelling ctx cancels the run.
func (a *App) RunJob(ctx context.Context, kind string) (runner.Snapshot, error) {
	fn, ok := a.Jobs()[kind]
	if !ok {
		if a.dict == nil && kind != KindAudio {
			return runner.Snapshot{}, fmt.Errorf("%s: %w", kind, ErrNoDictionary)
		}
		return runner.Snapshot{}, fmt.Errorf("unknown run kind %q", kind)
	}
	h, err := a.registry.Start(ctx, kind, fn)
	if err != nil {
		return runner.Snapshot{}, err
	}
	err = h.Wait()
	return h.Snapshot(), err
}

// CheckLogin reports whether the configured credential is still logged in.
func (a *App) CheckLogin(ctx context.Context, observer progress.LoginObserver) (bool, error) {
	if a.dict == nil {
		return false, ErrNoDictionary
	}
	check := worker.NewLoginCheck(a.dict, a.credential, observer, a.logger.Named("login"))
	return check.Run(ctx), nil
}

// Serve runs the control API until ctx is cancelled, then shuts the server
// and the registry down.
func (a *App) Serve(ctx context.Context) error {
	apiServer := api.NewServer(a.registry, a.Jobs(), a.history, a.cfg, a.logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	if err := a.registry.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("runner shutdown incomplete", zap.Error(err))
	}
	return runErr
}

// Close drains the progress hub and releases stores. Runs still in flight
// are cancelled first.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.registry != nil {
		if err := a.registry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
			errs = append(errs, err)
		}
		if dropped := a.hub.Dropped(); dropped > 0 {
			a.logger.Warn("progress events dropped", zap.Int64("dropped", dropped))
		}
	}
	if err := a.closeStores(); err != nil {
		errs = append(errs, err)
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func (a *App) closeStores() error {
	var err error
	if a.pgHistory != nil {
		a.pgHistory.Close()
		a.pgHistory = nil
	}
	if a.vocab != nil {
		if cerr := a.vocab.Close(); cerr != nil {
			a.logger.Warn("vocabulary store close failed", zap.Error(cerr))
			err = cerr
		}
		a.vocab = nil
	}
	return err
}
