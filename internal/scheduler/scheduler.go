// Package scheduler fans companies out over a bounded worker pool and
// coordinates graceful shutdown.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zmahayni/SEC-Crypto-Analysis/internal/model"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/stage"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/worker"
)

// ErrInterrupted distinguishes a resumable, signal-driven stop from clean
// completion.
var ErrInterrupted = errors.New("scan interrupted")

// Config sizes the pool and the optional staging-pressure gate.
type Config struct {
	CompanyConcurrency int
	// MaxStagingBytes pauses admission while the staging tree is larger
	// than this; 0 disables the gate.
	MaxStagingBytes    int64
	ResumeStagingBytes int64
	StorageCheckEvery  time.Duration
}

// WorkerFactory yields a fresh Worker plus a release func for its session.
// One Worker (and one HTTP session) per company keeps connection pools
// thread-local, never shared.
type WorkerFactory func() (*worker.Worker, func())

// Scheduler runs the outer company pool. The inner per-company document
// pool lives in the Worker; both are sized well below what would trip the
// rate limiter, which is the true request-rate backstop.
type Scheduler struct {
	cfg       Config
	newWorker WorkerFactory
	root      *stage.Root
	flusher   *stage.Flusher
	tracker   *Tracker
	logger    *zap.Logger
}

// New builds a Scheduler.
func New(
	cfg Config,
	newWorker WorkerFactory,
	root *stage.Root,
	flusher *stage.Flusher,
	tracker *Tracker,
	logger *zap.Logger,
) *Scheduler {
	if cfg.CompanyConcurrency <= 0 {
		cfg.CompanyConcurrency = 1
	}
	if cfg.StorageCheckEvery <= 0 {
		cfg.StorageCheckEvery = time.Minute
	}
	return &Scheduler{
		cfg:       cfg,
		newWorker: newWorker,
		root:      root,
		flusher:   flusher,
		tracker:   tracker,
		logger:    logger,
	}
}

// Run drives all companies and returns the summary. On interruption it
// stops admitting new companies, lets in-flight workers reach their safe
// checkpoint, flushes completed folders, and returns ErrInterrupted.
func (s *Scheduler) Run(ctx context.Context, companies []model.Company) (model.ScanSummary, error) {
	total := len(companies)
	s.logger.Info("scan starting",
		zap.Stringer("run_id", s.tracker.RunID()),
		zap.Int("companies", total),
		zap.Int("concurrency", s.cfg.CompanyConcurrency),
	)

	// Deliberately no errgroup.WithContext: one company's failure must not
	// cancel the others. Worker errors are absorbed into the tracker.
	var g errgroup.Group
	g.SetLimit(s.cfg.CompanyConcurrency)

	for i, c := range companies {
		if ctx.Err() != nil {
			break
		}
		if err := s.waitForStagingRoom(ctx); err != nil {
			break
		}
		idx := i + 1
		g.Go(func() error {
			w, release := s.newWorker()
			defer release()
			if _, err := w.Process(ctx, c, idx, total); err != nil && ctx.Err() == nil {
				// Already logged and counted by the worker.
				_ = err
			}
			return nil
		})
	}
	_ = g.Wait()

	// Flush completed folders even when the run context is already
	// canceled; the move to durable storage is the shutdown's whole point.
	flushCtx := context.WithoutCancel(ctx)
	moved, failed, ferr := s.flusher.Flush(flushCtx)
	if ferr != nil {
		s.logger.Error("final flush failed", zap.Error(ferr))
	}

	summary := s.tracker.Snapshot()
	summary.FoldersFlushed = moved
	if ctx.Err() != nil {
		summary.Interrupted = true
		s.logger.Info("scan interrupted, resumable",
			zap.Int("completed", summary.CompaniesCompleted),
			zap.Int("flushed", moved),
			zap.Int("flush_failed", failed),
		)
		return summary, ErrInterrupted
	}
	s.logger.Info("scan complete",
		zap.Int("completed", summary.CompaniesCompleted),
		zap.Int("skipped", summary.CompaniesSkipped),
		zap.Int("failed", summary.CompaniesFailed),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}

// waitForStagingRoom blocks admission while the staging tree is over the
// size gate, flushing completed folders to make room.
func (s *Scheduler) waitForStagingRoom(ctx context.Context) error {
	if s.cfg.MaxStagingBytes <= 0 {
		return nil
	}
	size, err := s.root.SizeBytes()
	if err != nil || size <= s.cfg.MaxStagingBytes {
		return nil
	}

	if _, _, err := s.flusher.Flush(ctx); err != nil {
		return err
	}
	resume := s.cfg.ResumeStagingBytes
	if resume <= 0 {
		resume = s.cfg.MaxStagingBytes
	}
	for {
		size, err := s.root.SizeBytes()
		if err != nil || size <= resume {
			return nil
		}
		s.logger.Warn("staging over size gate, pausing admission",
			zap.Int64("bytes", size), zap.Int64("resume_below", resume))
		timer := time.NewTimer(s.cfg.StorageCheckEvery)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if _, _, err := s.flusher.Flush(ctx); err != nil {
			return err
		}
	}
}
