package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zmahayni/SEC-Crypto-Analysis/internal/clock"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/edgar"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/fetcher"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/keyword"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/ledger"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/model"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/ratelimit"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/stage"
)

const (
	testCIK = "0000320193"

	submissionsPath = "/submissions/CIK0000320193.json"
	masterPath      = "/Archives/edgar/data/320193/0000320193-26-000001.txt"
	indexPath       = "/Archives/edgar/data/320193/000032019326000001/index.json"
	primaryPath     = "/Archives/edgar/data/320193/000032019326000001/primary.htm"
	exhibitPath     = "/Archives/edgar/data/320193/000032019326000001/ex1.htm"
)

const submissionsBody = `{
  "sic": "3571",
  "filings": {
    "recent": {
      "accessionNumber": ["0000320193-26-000001"],
      "form": ["10-K"],
      "filingDate": ["2026-01-15"],
      "primaryDocument": ["primary.htm"]
    }
  }
}`

const emptySubmissionsBody = `{
  "sic": "3571",
  "filings": {"recent": {"accessionNumber": [], "form": [], "filingDate": [], "primaryDocument": []}}
}`

const indexBody = `{
  "directory": {
    "item": [
      {"name": "primary.htm", "type": "text.gif"},
      {"name": "ex1.htm", "type": "text.gif"}
    ]
  }
}`

// edgarStub serves a canned one-filing company and records which paths
// were requested.
type edgarStub struct {
	mu     sync.Mutex
	hits   map[string]int
	bodies map[string]string
}

func newEdgarStub() *edgarStub {
	return &edgarStub{
		hits: make(map[string]int),
		bodies: map[string]string{
			submissionsPath: submissionsBody,
			masterPath:      "combined filing text without any terms of interest",
			indexPath:       indexBody,
			primaryPath:     "<html>routine disclosure</html>",
			exhibitPath:     "<html>we purchased bitcoin</html>",
		},
	}
}

func (s *edgarStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if r.Method == http.MethodGet {
		s.hits[r.URL.Path]++
	}
	body, ok := s.bodies[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_, _ = w.Write([]byte(body))
}

func (s *edgarStub) set(path, body string) {
	s.mu.Lock()
	s.bodies[path] = body
	s.mu.Unlock()
}

func (s *edgarStub) gets(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// recordingProgress captures worker.Progress callbacks.
type recordingProgress struct {
	mu          sync.Mutex
	started     []string
	completed   []model.CompanyResult
	skipped     []string
	failed      []string
	interrupted []string
	docs        int
}

func (p *recordingProgress) CompanyStarted(cik string) {
	p.mu.Lock()
	p.started = append(p.started, cik)
	p.mu.Unlock()
}

func (p *recordingProgress) CompanyCompleted(res model.CompanyResult) {
	p.mu.Lock()
	p.completed = append(p.completed, res)
	p.mu.Unlock()
}

func (p *recordingProgress) CompanySkipped(cik string) {
	p.mu.Lock()
	p.skipped = append(p.skipped, cik)
	p.mu.Unlock()
}

func (p *recordingProgress) CompanyFailed(cik string, _ error) {
	p.mu.Lock()
	p.failed = append(p.failed, cik)
	p.mu.Unlock()
}

func (p *recordingProgress) CompanyInterrupted(cik string) {
	p.mu.Lock()
	p.interrupted = append(p.interrupted, cik)
	p.mu.Unlock()
}

func (p *recordingProgress) DocumentScanned(_, _ bool) {
	p.mu.Lock()
	p.docs++
	p.mu.Unlock()
}

type fixture struct {
	worker   *Worker
	root     *stage.Root
	led      *ledger.Ledger
	progress *recordingProgress
}

func newFixture(t *testing.T, srv *httptest.Server) *fixture {
	t.Helper()

	sess := edgar.NewSession(edgar.SessionConfig{
		Contact:        "research@example.com",
		UserAgent:      "secscan-test/0",
		DataBaseURL:    srv.URL,
		ArchiveBaseURL: srv.URL,
		MaxRetries:     2,
		Backoff:        []time.Duration{time.Millisecond},
	}, ratelimit.Unlimited(), zap.NewNop())
	t.Cleanup(sess.Close)

	clk := clock.Fixed{T: time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)}
	enum := edgar.NewEnumerator(sess, map[string]struct{}{"10-K": {}}, 5, false, clk, zap.NewNop())
	fetch := fetcher.New(sess, keyword.New(), fetcher.Config{}, zap.NewNop())

	root, err := stage.NewRoot(t.TempDir())
	require.NoError(t, err)
	led, err := ledger.Open(filepath.Join(t.TempDir(), "progress.txt"))
	require.NoError(t, err)

	progress := &recordingProgress{}
	return &fixture{
		worker:   New(enum, fetch, root, led, 4, progress, zap.NewNop()),
		root:     root,
		led:      led,
		progress: progress,
	}
}

func TestProcessCompanyEndToEnd(t *testing.T) {
	t.Parallel()

	stub := newEdgarStub()
	srv := httptest.NewServer(stub)
	defer srv.Close()

	fx := newFixture(t, srv)
	res, err := fx.worker.Process(context.Background(), model.Company{CIK: testCIK, Name: "Apple"}, 1, 1)
	require.NoError(t, err)
	require.Equal(t, StateDone, fx.worker.State())

	// Master text missed, primary missed, exhibit hit.
	require.Equal(t, 1, res.FilingsScanned)
	require.Equal(t, 3, res.DocumentsScanned)
	require.Equal(t, 1, res.Matches)
	require.Equal(t, 1, res.DocumentsSaved)
	require.False(t, res.Skipped)

	folder := filepath.Join(fx.root.Base(), testCIK)
	require.FileExists(t, filepath.Join(folder, stage.MarkerComplete))
	require.NoFileExists(t, filepath.Join(folder, stage.MarkerStaging))
	require.FileExists(t, filepath.Join(folder, stage.SICFileName))
	require.FileExists(t, filepath.Join(folder, testCIK+"_10-K_2026-01-15_ex1.htm"))
	require.True(t, fx.led.Has(testCIK), "completion is durably recorded")
	require.Len(t, fx.progress.completed, 1)
}

func TestProcessSkipsLedgeredCompany(t *testing.T) {
	t.Parallel()

	stub := newEdgarStub()
	srv := httptest.NewServer(stub)
	defer srv.Close()

	fx := newFixture(t, srv)
	require.NoError(t, fx.led.Append(testCIK))

	res, err := fx.worker.Process(context.Background(), model.Company{CIK: testCIK}, 1, 1)
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.Equal(t, StateDone, fx.worker.State())
	require.Zero(t, stub.gets(submissionsPath), "no network traffic for a done company")
	require.Equal(t, []string{testCIK}, fx.progress.skipped)
}

func TestProcessMasterHitSkipsIndex(t *testing.T) {
	t.Parallel()

	stub := newEdgarStub()
	stub.set(masterPath, "combined text disclosing a blockchain initiative")
	srv := httptest.NewServer(stub)
	defer srv.Close()

	fx := newFixture(t, srv)
	res, err := fx.worker.Process(context.Background(), model.Company{CIK: testCIK}, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 1, res.DocumentsScanned, "only the master text was scanned")
	require.Equal(t, 1, res.Matches)
	require.Zero(t, stub.gets(indexPath), "a master hit settles the filing")
	require.Zero(t, stub.gets(primaryPath))
}

func TestProcessPrimaryHitSkipsExhibits(t *testing.T) {
	t.Parallel()

	stub := newEdgarStub()
	stub.set(primaryPath, "<html>we hold cryptocurrency</html>")
	srv := httptest.NewServer(stub)
	defer srv.Close()

	fx := newFixture(t, srv)
	res, err := fx.worker.Process(context.Background(), model.Company{CIK: testCIK}, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 2, res.DocumentsScanned, "master miss, primary hit")
	require.Zero(t, stub.gets(exhibitPath), "a primary hit skips the exhibits")
}

func TestProcessZeroFilingsCompletesImmediately(t *testing.T) {
	t.Parallel()

	stub := newEdgarStub()
	stub.set(submissionsPath, emptySubmissionsBody)
	srv := httptest.NewServer(stub)
	defer srv.Close()

	fx := newFixture(t, srv)
	res, err := fx.worker.Process(context.Background(), model.Company{CIK: testCIK}, 1, 1)
	require.NoError(t, err)
	require.Zero(t, res.FilingsScanned)
	require.True(t, fx.led.Has(testCIK))
	require.FileExists(t, filepath.Join(fx.root.Base(), testCIK, stage.MarkerComplete))
}

func TestProcessMetadataFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	fx := newFixture(t, srv)
	_, err := fx.worker.Process(context.Background(), model.Company{CIK: testCIK}, 1, 1)
	require.Error(t, err)
	require.Equal(t, StateFailed, fx.worker.State())
	require.False(t, fx.led.Has(testCIK), "a failed company is never recorded done")
	require.Equal(t, []string{testCIK}, fx.progress.failed)
}

func TestProcessInterruptedLeavesFolderInProgress(t *testing.T) {
	t.Parallel()

	stub := newEdgarStub()
	srv := httptest.NewServer(stub)
	defer srv.Close()

	fx := newFixture(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.worker.Process(ctx, model.Company{CIK: testCIK}, 1, 1)
	require.ErrorIs(t, err, context.Canceled)

	folder := filepath.Join(fx.root.Base(), testCIK)
	require.FileExists(t, filepath.Join(folder, stage.MarkerStaging), "interrupted company stays in progress")
	require.NoFileExists(t, filepath.Join(folder, stage.MarkerComplete))
	require.False(t, fx.led.Has(testCIK))

	// Every started company ends in exactly one terminal event.
	require.Equal(t, []string{testCIK}, fx.progress.started)
	require.Equal(t, []string{testCIK}, fx.progress.interrupted)
	require.Empty(t, fx.progress.completed)
	require.Empty(t, fx.progress.failed)
}

func TestProcessBrokenIndexSkipsFiling(t *testing.T) {
	t.Parallel()

	stub := newEdgarStub()
	stub.set(indexPath, "not json")
	srv := httptest.NewServer(stub)
	defer srv.Close()

	fx := newFixture(t, srv)
	res, err := fx.worker.Process(context.Background(), model.Company{CIK: testCIK}, 1, 1)
	require.NoError(t, err, "a broken filing index does not fail the company")
	require.Equal(t, 1, res.FilingsScanned)
	require.Equal(t, 1, res.DocumentsScanned, "only the master text was scanned")
	require.True(t, fx.led.Has(testCIK))
}
