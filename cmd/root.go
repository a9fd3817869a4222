// Package cmd defines and implements the CLI commands for the secscan
// executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zmahayni/SEC-Crypto-Analysis/internal/config"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/logging"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/scheduler"
)

// Exit codes: clean completion, fatal configuration error, and graceful
// interruption (resumable) are distinguishable to calling scripts.
const (
	exitFatal       = 1
	exitConfigError = 2
	exitInterrupted = 130
)

// errConfig marks errors that abort the run before any work starts.
var errConfig = errors.New("configuration error")

var cfgFile string

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// App carries the services every subcommand needs.
type App struct {
	Cfg    config.Config
	Logger *zap.Logger
}

// newApp is a variable so tests can substitute a fake factory.
var newApp = func() (*App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errConfig, err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &App{Cfg: cfg, Logger: logger}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secscan",
		Short: "Scans SEC EDGAR filings for cryptocurrency keywords.",
		Long: `secscan collects EDGAR filings for a fixed universe of public companies,
scans their documents for cryptocurrency-related keywords, and persists
matching evidence for downstream research. The crawl is rate-limited,
resumable, and survives interruption without losing or duplicating work.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			app, err := newApp()
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, app))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if app, ok := cmd.Context().Value(appKey).(*App); ok && app != nil {
				_ = app.Logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./secscan.yaml when present)")

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newFlushCmd())
	cmd.AddCommand(newClearTempCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func resolveApp(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey).(*App)
	if !ok || app == nil {
		return nil, errors.New("application services not initialized")
	}
	return app, nil
}

// Execute is the main entry point; it maps error classes to exit codes.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		switch {
		case errors.Is(err, scheduler.ErrInterrupted):
			os.Exit(exitInterrupted)
		case errors.Is(err, errConfig):
			os.Exit(exitConfigError)
		default:
			os.Exit(exitFatal)
		}
	}
}
