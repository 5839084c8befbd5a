// Package cmd defines the vocabsync command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/app"
	"github.com/JakeFAU/vocabsync/internal/config"
	"github.com/JakeFAU/vocabsync/internal/logging"
	"github.com/JakeFAU/vocabsync/internal/progress"
	"github.com/JakeFAU/vocabsync/internal/runner"
	"github.com/JakeFAU/vocabsync/internal/storage/sqlite"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

const closeTimeout = 15 * time.Second

// App is the slice of the application container the commands use.
type App interface {
	Logger() *zap.Logger
	RunJob(ctx context.Context, kind string) (runner.Snapshot, error)
	CheckLogin(ctx context.Context, observer progress.LoginObserver) (bool, error)
	Counts(ctx context.Context) (sqlite.Counts, error)
	Serve(ctx context.Context) error
	Close(ctx context.Context) error
}

// newApp is the application factory. Tests replace it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return app.Build(ctx, cfg, app.Options{Logger: logger})
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "vocabsync",
		Short: "Synchronise a remote vocabulary book into a local store.",
		Long: `vocabsync pulls words, example sentences, translations and
pronunciation audio from a remote dictionary service into a local SQLite
database and audio directory. Every command can be interrupted with Ctrl-C;
work already committed is kept and the next run resumes from what is
still pending.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); VOCABSYNC_* variables override it")

	cmd.AddCommand(
		newRunCmd(app.KindWords, "Fetch the remote word book into the local store"),
		newRunCmd(app.KindExamples, "Fetch example sentences for words that have none"),
		newRunCmd(app.KindSentences, "Translate example sentences that lack a translation"),
		newRunCmd(app.KindAudio, "Download missing or partial pronunciation files"),
		newLoginCmd(),
		newStatusCmd(),
		newServeCmd(),
	)
	return cmd
}

// withApp resolves the App for fn and closes it once fn returns, whatever
// the outcome.
func withApp(fn func(cmd *cobra.Command, appInstance App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) (err error) {
		appInstance, err := resolveApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), closeTimeout)
			defer cancel()
			if cerr := appInstance.Close(ctx); cerr != nil {
				err = errors.Join(err, fmt.Errorf("shutdown: %w", cerr))
			}
		}()
		return fn(cmd, appInstance)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
