// Package worker drives one company end-to-end: metadata, document scans,
// staging writes, and the completion marker + ledger append.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zmahayni/SEC-Crypto-Analysis/internal/edgar"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/fetcher"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/ledger"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/metrics"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/model"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/stage"
)

// State is the worker's position in its per-company lifecycle.
type State string

// Lifecycle states. Failed absorbs any step after retries are exhausted;
// it is reported but never halts other workers.
const (
	StatePending           State = "pending"
	StateFetchingMetadata  State = "fetching_metadata"
	StateScanningDocuments State = "scanning_documents"
	StateWritingMarker     State = "writing_marker"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// Progress receives live per-company events. Implementations must be safe
// for concurrent use.
type Progress interface {
	CompanyStarted(cik string)
	CompanyCompleted(res model.CompanyResult)
	CompanySkipped(cik string)
	CompanyFailed(cik string, err error)
	CompanyInterrupted(cik string)
	DocumentScanned(matched, saved bool)
}

// Worker processes exactly one company per Process call. Each Worker owns
// its session-bound fetcher; Workers are never shared across companies.
type Worker struct {
	enum     *edgar.Enumerator
	fetch    *fetcher.Fetcher
	root     *stage.Root
	led      *ledger.Ledger
	docLimit int
	progress Progress
	logger   *zap.Logger

	mu    sync.Mutex
	state State
}

// New builds a Worker.
func New(
	enum *edgar.Enumerator,
	fetch *fetcher.Fetcher,
	root *stage.Root,
	led *ledger.Ledger,
	docLimit int,
	progress Progress,
	logger *zap.Logger,
) *Worker {
	if docLimit <= 0 {
		docLimit = 1
	}
	return &Worker{
		enum:     enum,
		fetch:    fetch,
		root:     root,
		led:      led,
		docLimit: docLimit,
		progress: progress,
		logger:   logger,
		state:    StatePending,
	}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Process runs the company through the state machine. A context error means
// the run was interrupted: the folder stays in-progress so a future run
// resumes it rather than skipping it. Any other error leaves the company
// Failed without affecting the rest of the run.
func (w *Worker) Process(ctx context.Context, c model.Company, idx, total int) (model.CompanyResult, error) {
	res := model.CompanyResult{CIK: c.CIK}

	if w.led.Has(c.CIK) {
		res.Skipped = true
		w.setState(StateDone)
		metrics.CompaniesTotal.WithLabelValues(metrics.StateSkipped).Inc()
		w.progress.CompanySkipped(c.CIK)
		return res, nil
	}

	w.progress.CompanyStarted(c.CIK)
	w.logger.Info("company start",
		zap.Int("index", idx),
		zap.Int("total", total),
		zap.String("cik", c.CIK),
		zap.String("name", c.Name),
	)

	dir, err := w.root.Open(c.CIK)
	if err != nil {
		return res, w.fail(c.CIK, err)
	}

	w.setState(StateFetchingMetadata)
	meta, err := w.enum.Company(ctx, c.CIK)
	if err != nil {
		if ctx.Err() != nil {
			w.progress.CompanyInterrupted(c.CIK)
			return res, ctx.Err()
		}
		return res, w.fail(c.CIK, err)
	}
	if err := dir.WriteSIC(meta.SIC); err != nil {
		return res, w.fail(c.CIK, err)
	}

	if len(meta.Filings) == 0 {
		return res, w.complete(c.CIK, dir, "0 filings", res)
	}

	w.setState(StateScanningDocuments)
	for _, f := range meta.Filings {
		if ctx.Err() != nil {
			break
		}
		w.processFiling(ctx, dir, f, &res)
		res.FilingsScanned++
	}

	if ctx.Err() != nil {
		// In-flight fetches have finished; the folder keeps its .STAGING
		// marker so the next run rescans instead of skipping.
		w.progress.CompanyInterrupted(c.CIK)
		w.logger.Info("interrupted, company left in progress", zap.String("cik", c.CIK))
		return res, ctx.Err()
	}
	return res, w.complete(c.CIK, dir, "done", res)
}

// complete performs the marker write and the ledger append as a unit; the
// crash window between them is reconciled at the next startup.
func (w *Worker) complete(cik string, dir *stage.Dir, note string, res model.CompanyResult) error {
	w.setState(StateWritingMarker)
	if err := dir.MarkComplete(note); err != nil {
		return w.fail(cik, err)
	}
	if err := w.led.Append(cik); err != nil {
		return w.fail(cik, err)
	}
	w.setState(StateDone)
	metrics.CompaniesTotal.WithLabelValues(metrics.StateCompleted).Inc()
	w.progress.CompanyCompleted(res)
	return nil
}

func (w *Worker) fail(cik string, err error) error {
	w.setState(StateFailed)
	metrics.CompaniesTotal.WithLabelValues(metrics.StateFailed).Inc()
	w.progress.CompanyFailed(cik, err)
	w.logger.Error("company failed", zap.String("cik", cik), zap.Error(err))
	return err
}

// processFiling scans one filing: master text first, then the index
// documents, primary synchronously before the exhibit sub-pool. Errors are
// per-filing: logged and skipped, never fatal to the company.
func (w *Worker) processFiling(ctx context.Context, dir *stage.Dir, f model.Filing, res *model.CompanyResult) {
	master, err := w.enum.MasterTextRef(dir.CIK(), f)
	if err == nil {
		r, mErr := w.fetch.ProcessMasterText(ctx, dir, master)
		w.record(r, res)
		if mErr != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("master text scan failed, falling back to index",
				zap.String("accession", f.Accession), zap.Error(mErr))
		} else if r.Matched {
			return
		}
	}

	docs, err := w.enum.ResolveDocuments(ctx, dir.CIK(), f)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("skipping filing, index unavailable",
			zap.String("accession", f.Accession), zap.Error(err))
		return
	}
	if len(docs) == 0 {
		return
	}

	// The primary document goes first and alone so a hit there skips the
	// remaining exhibits entirely.
	first, rest := docs[0], docs[1:]
	r, dErr := w.fetch.ProcessDocument(ctx, dir, first)
	w.record(r, res)
	if dErr != nil && ctx.Err() == nil {
		w.logger.Warn("document scan failed, skipped",
			zap.String("doc", first.Name), zap.Error(dErr))
	}
	if r.Matched || len(rest) == 0 || ctx.Err() != nil {
		return
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.docLimit)
	for _, doc := range rest {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			r, err := w.fetch.ProcessDocument(gctx, dir, doc)
			mu.Lock()
			w.record(r, res)
			mu.Unlock()
			if err != nil && gctx.Err() == nil {
				w.logger.Warn("document scan failed, skipped",
					zap.String("doc", doc.Name), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) record(r model.MatchResult, res *model.CompanyResult) {
	res.DocumentsScanned++
	if r.Matched {
		res.Matches++
	}
	if r.Saved {
		res.DocumentsSaved++
	}
	w.progress.DocumentScanned(r.Matched, r.Saved)
}
