package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zmahayni/SEC-Crypto-Analysis/internal/stage"
)

// newFlushCmd creates the 'flush' subcommand: move completed staged
// folders to the archive without running a scan.
func newFlushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Moves completed staged company folders to the archive",
		Long: `Moves every staged company folder bearing a COMPLETE marker into the
configured archive backend. Idempotent: folders already moved are gone from
staging, so a second flush with no new completions is a no-op.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			root, err := stage.NewRoot(app.Cfg.Paths.StagingDir)
			if err != nil {
				return fmt.Errorf("prepare staging: %w", err)
			}
			archive, err := buildArchive(cmd.Context(), app.Cfg)
			if err != nil {
				return fmt.Errorf("%w: %v", errConfig, err)
			}

			moved, failed, err := stage.NewFlusher(root, archive, app.Logger).Flush(cmd.Context())
			if err != nil {
				return fmt.Errorf("flush: %w", err)
			}
			app.Logger.Info("flush done", zap.Int("moved", moved), zap.Int("failed", failed))
			if failed > 0 {
				return fmt.Errorf("%d folder(s) failed to flush", failed)
			}
			return nil
		},
	}
}
