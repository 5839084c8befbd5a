package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print local vocabulary totals as JSON",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, appInstance App) error {
			counts, err := appInstance.Counts(cmd.Context())
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(counts); err != nil {
				return fmt.Errorf("status: encode: %w", err)
			}
			return nil
		}),
	}
}
