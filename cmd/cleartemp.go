package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newClearTempCmd creates the 'clear-temp' subcommand: wipe local staging
// state, optionally including the progress ledger.
func newClearTempCmd() *cobra.Command {
	var includeProgress bool
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear-temp",
		Short: "Removes the local staging tree",
		Long: `Removes the staging directory and, with --include-progress, the progress
ledger as well. Archived filings are untouched. Clearing the ledger makes
the next scan start from scratch.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("clear-temp deletes local state; re-run with --yes to confirm")
			}

			staging := app.Cfg.Paths.StagingDir
			if err := os.RemoveAll(staging); err != nil {
				return fmt.Errorf("remove staging %s: %w", staging, err)
			}
			app.Logger.Info("staging removed", zap.String("dir", staging))

			if includeProgress {
				progress := app.Cfg.Paths.ProgressFile
				if err := os.Remove(progress); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove progress ledger %s: %w", progress, err)
				}
				app.Logger.Info("progress ledger removed", zap.String("file", progress))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeProgress, "include-progress", false, "also delete the progress ledger")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}
