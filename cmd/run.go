package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/vocabsync/internal/runner"
)

// newRunCmd builds the foreground command for one worker kind.
func newRunCmd(kind, short string) *cobra.Command {
	return &cobra.Command{
		Use:   kind,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance App) error {
			snap, err := appInstance.RunJob(cmd.Context(), kind)
			if err != nil {
				return fmt.Errorf("%s run failed: %w", kind, err)
			}
			appInstance.Logger().Info("command finished",
				zap.String("kind", kind),
				zap.String("state", string(snap.State)),
				zap.Stringer("run_id", snap.ID),
			)
			fmt.Fprintln(cmd.OutOrStdout(), summaryLine(snap))
			return nil
		}),
	}
}

func summaryLine(snap runner.Snapshot) string {
	switch snap.State {
	case runner.StateCanceled:
		return fmt.Sprintf("%s: canceled after %d of %d", snap.Kind, snap.Ticks, snap.Total)
	default:
		return fmt.Sprintf("%s: %s (%d/%d)", snap.Kind, snap.State, snap.Ticks, snap.Total)
	}
}
