package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zmahayni/SEC-Crypto-Analysis/internal/api"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/clock"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/config"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/edgar"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/fetcher"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/keyword"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/ledger"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/model"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/ratelimit"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/roster"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/scheduler"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/stage"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/worker"
)

type scanFlags struct {
	startFromCIK   string
	resumeFromLast bool
	yearsBack      int
	statusAddr     string
}

// newScanCmd creates the 'scan' subcommand.
func newScanCmd() *cobra.Command {
	flags := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Runs the filing scan over the company roster",
		Long: `Scans every roster company's recent filings for the crypto keyword set.
Completed companies are recorded in the progress ledger and skipped on the
next run; an interrupted run resumes where it left off.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runScan(cmd.Context(), app, flags)
		},
	}
	cmd.Flags().StringVar(&flags.startFromCIK, "start-from-cik", "", "CIK to start from (inclusive)")
	cmd.Flags().BoolVar(&flags.resumeFromLast, "resume-from-last", false,
		"start after the last completed CIK in the progress ledger (ignored with --start-from-cik)")
	cmd.Flags().IntVar(&flags.yearsBack, "years-back", 0, "override the configured lookback window")
	cmd.Flags().StringVar(&flags.statusAddr, "status-addr", "", "serve /progress and /metrics on this address")
	return cmd
}

func runScan(ctx context.Context, app *App, flags *scanFlags) error {
	cfg := app.Cfg
	logger := app.Logger
	if flags.yearsBack > 0 {
		cfg.Scan.YearsBack = flags.yearsBack
	}
	if flags.statusAddr != "" {
		cfg.Status.Addr = flags.statusAddr
	}

	companies, err := roster.Load(cfg.Scan.Roster)
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}

	led, err := ledger.Open(cfg.Paths.ProgressFile)
	if err != nil {
		return fmt.Errorf("open progress ledger: %w", err)
	}
	root, err := stage.NewRoot(cfg.Paths.StagingDir)
	if err != nil {
		return fmt.Errorf("prepare staging: %w", err)
	}
	if demoted, err := root.Reconcile(led.Has, logger); err != nil {
		return fmt.Errorf("reconcile staging: %w", err)
	} else if demoted > 0 {
		logger.Info("reconciled stale complete markers", zap.Int("companies", demoted))
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: %v", errConfig, err)
	}
	flusher := stage.NewFlusher(root, archive, logger)

	companies = sliceRoster(companies, flags, led, logger)

	pacer := ratelimit.New(cfg.Scan.MaxRPS)
	matcher := keyword.New()
	clk := clock.System{}
	tracker := scheduler.NewTracker(len(companies), clk)

	sessionCfg := edgar.SessionConfig{
		Contact:        cfg.Edgar.Contact,
		UserAgent:      cfg.Edgar.UserAgent,
		DataBaseURL:    cfg.Edgar.DataBaseURL,
		ArchiveBaseURL: cfg.Edgar.ArchiveBaseURL,
		Timeout:        cfg.Edgar.Timeout(),
		MaxRetries:     cfg.HTTP.MaxRetries,
		Backoff:        cfg.HTTP.Backoff(),
	}
	fetcherCfg := fetcher.Config{
		MaxSaveBytes:       cfg.Scan.MaxSaveBytes(),
		ChunkBytes:         cfg.Scan.ChunkBytes(),
		IncludePDF:         cfg.Scan.IncludePDF,
		MasterRecordAlways: cfg.Scan.MasterRecord == config.MasterRecordAlways,
	}

	// One session (and so one connection pool) per company worker; released
	// when the worker finishes, on every exit path.
	factory := func() (*worker.Worker, func()) {
		sess := edgar.NewSession(sessionCfg, pacer, logger)
		enum := edgar.NewEnumerator(sess, cfg.Scan.FormSet(), cfg.Scan.YearsBack, cfg.Scan.IncludePDF, clk, logger)
		fetch := fetcher.New(sess, matcher, fetcherCfg, logger)
		return worker.New(enum, fetch, root, led, cfg.Scan.DocConcurrency, tracker, logger), sess.Close
	}

	sched := scheduler.New(scheduler.Config{
		CompanyConcurrency: cfg.Scan.CompanyConcurrency,
		MaxStagingBytes:    int64(cfg.Scan.MaxStagingMB) * 1024 * 1024,
		ResumeStagingBytes: int64(cfg.Scan.ResumeStagingMB) * 1024 * 1024,
	}, factory, root, flusher, tracker, logger)

	if cfg.Status.Addr != "" {
		api.New(cfg.Status.Addr, tracker.Snapshot, logger).Start(ctx)
	}

	summary, err := sched.Run(ctx, companies)
	logger.Info("run summary",
		zap.Stringer("run_id", summary.RunID),
		zap.Int("companies_completed", summary.CompaniesCompleted),
		zap.Int("companies_skipped", summary.CompaniesSkipped),
		zap.Int("companies_failed", summary.CompaniesFailed),
		zap.Int("documents_scanned", summary.DocumentsScanned),
		zap.Int("documents_saved", summary.DocumentsSaved),
		zap.Int("matches_found", summary.MatchesFound),
		zap.Int("folders_flushed", summary.FoldersFlushed),
		zap.Bool("interrupted", summary.Interrupted),
	)
	return err
}

// sliceRoster applies --start-from-cik / --resume-from-last. The ledger
// skip-set is always consulted on top of the slice, so the two compose.
func sliceRoster(companies []model.Company, flags *scanFlags, led *ledger.Ledger, logger *zap.Logger) []model.Company {
	startFrom := ""
	if flags.startFromCIK != "" {
		cik, ok := roster.NormalizeCIK(flags.startFromCIK)
		if !ok {
			logger.Warn("unusable --start-from-cik, starting from the beginning",
				zap.String("value", flags.startFromCIK))
			return companies
		}
		startFrom = cik
	} else if flags.resumeFromLast {
		last := led.Last()
		if last == "" {
			logger.Info("progress ledger empty, starting from the beginning")
			return companies
		}
		for i, c := range companies {
			if c.CIK == last {
				if i+1 >= len(companies) {
					logger.Info("ledger shows all companies complete, starting from the beginning")
					return companies
				}
				logger.Info("resuming after last completed company",
					zap.String("last", last), zap.String("next", companies[i+1].CIK))
				return companies[i+1:]
			}
		}
		logger.Info("last completed CIK not in roster, starting from the beginning",
			zap.String("last", last))
		return companies
	}
	if startFrom == "" {
		return companies
	}
	for i, c := range companies {
		if c.CIK == startFrom {
			logger.Info("starting from requested CIK",
				zap.String("cik", startFrom), zap.Int("position", i+1), zap.Int("total", len(companies)))
			return companies[i:]
		}
	}
	logger.Warn("--start-from-cik not in roster, starting from the beginning", zap.String("cik", startFrom))
	return companies
}

func buildArchive(ctx context.Context, cfg config.Config) (stage.Archive, error) {
	switch cfg.Archive.Backend {
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return stage.NewGCSArchive(client, cfg.Archive.GCSBucket, cfg.Archive.Prefix)
	default:
		return stage.NewLocalArchive(cfg.Paths.ArchiveDir)
	}
}
