package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zmahayni/SEC-Crypto-Analysis/internal/clock"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/model"
)

// Tracker accumulates live run progress. It implements worker.Progress and
// backs both the final summary and the status server's snapshot.
type Tracker struct {
	clk clock.Clock

	mu        sync.Mutex
	runID     uuid.UUID
	startedAt time.Time
	total     int
	running   int
	completed int
	skipped   int
	failed    int
	docs      int
	saved     int
	matches   int
}

// NewTracker starts tracking a run over total companies.
func NewTracker(total int, clk clock.Clock) *Tracker {
	return &Tracker{
		clk:       clk,
		runID:     uuid.New(),
		startedAt: clk.Now(),
		total:     total,
	}
}

// RunID identifies this run in logs and the summary.
func (t *Tracker) RunID() uuid.UUID {
	return t.runID
}

// CompanyStarted implements worker.Progress.
func (t *Tracker) CompanyStarted(string) {
	t.mu.Lock()
	t.running++
	t.mu.Unlock()
}

// CompanyCompleted implements worker.Progress.
func (t *Tracker) CompanyCompleted(model.CompanyResult) {
	t.mu.Lock()
	t.running--
	t.completed++
	t.mu.Unlock()
}

// CompanySkipped implements worker.Progress.
func (t *Tracker) CompanySkipped(string) {
	t.mu.Lock()
	t.skipped++
	t.mu.Unlock()
}

// CompanyFailed implements worker.Progress.
func (t *Tracker) CompanyFailed(string, error) {
	t.mu.Lock()
	t.running--
	t.failed++
	t.mu.Unlock()
}

// CompanyInterrupted implements worker.Progress. An interrupted company is
// neither completed nor failed; it only stops running.
func (t *Tracker) CompanyInterrupted(string) {
	t.mu.Lock()
	t.running--
	t.mu.Unlock()
}

// DocumentScanned implements worker.Progress.
func (t *Tracker) DocumentScanned(matched, saved bool) {
	t.mu.Lock()
	t.docs++
	if matched {
		t.matches++
	}
	if saved {
		t.saved++
	}
	t.mu.Unlock()
}

// Snapshot returns the current run totals.
func (t *Tracker) Snapshot() model.ScanSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.ScanSummary{
		RunID:              t.runID,
		Started:            t.startedAt,
		Elapsed:            t.clk.Now().Sub(t.startedAt),
		CompaniesTotal:     t.total,
		CompaniesRunning:   t.running,
		CompaniesCompleted: t.completed,
		CompaniesSkipped:   t.skipped,
		CompaniesFailed:    t.failed,
		DocumentsScanned:   t.docs,
		DocumentsSaved:     t.saved,
		MatchesFound:       t.matches,
	}
}
