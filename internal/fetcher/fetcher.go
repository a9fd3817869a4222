// Package fetcher downloads and scans individual filing documents.
//
// Documents are streamed in fixed-size chunks through the keyword matcher,
// never read past the size cap, and abandoned early once a match plus a
// bounded tail of context is in hand. Only matching evidence is persisted;
// everything else is discarded immediately to bound memory.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/zmahayni/SEC-Crypto-Analysis/internal/edgar"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/keyword"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/metrics"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/model"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/stage"
)

// ErrSizeExceeded marks a document skipped for exceeding the size cap.
// It is not a failure for the run.
var ErrSizeExceeded = errors.New("document exceeds size cap")

// Config bounds the fetcher's streaming behavior.
type Config struct {
	// MaxSaveBytes caps both reads and saved files (default 20MB).
	MaxSaveBytes int64
	// ChunkBytes is the streaming chunk size (default 256KB).
	ChunkBytes int
	// ContextBytes bounds the rolling context buffer (default 1MB).
	ContextBytes int
	// EarlyExitBytes is how much trailing context to keep reading after a
	// match before abandoning the stream (default 25KB).
	EarlyExitBytes int
	// SnippetRadius bounds per-match context in snippets.
	SnippetRadius int
	// IncludePDF enables the PDF path.
	IncludePDF bool
	// MasterRecordAlways writes the master-text record even without a match.
	MasterRecordAlways bool
}

func (c Config) withDefaults() Config {
	if c.MaxSaveBytes <= 0 {
		c.MaxSaveBytes = 20 * 1024 * 1024
	}
	if c.ChunkBytes <= 0 {
		c.ChunkBytes = 256 * 1024
	}
	if c.ContextBytes <= 0 {
		c.ContextBytes = 1_000_000
	}
	if c.EarlyExitBytes <= 0 {
		c.EarlyExitBytes = 25_000
	}
	return c
}

// Fetcher scans documents for one worker, through that worker's session.
type Fetcher struct {
	session *edgar.Session
	matcher *keyword.Matcher
	cfg     Config
	logger  *zap.Logger
}

// New builds a Fetcher.
func New(session *edgar.Session, matcher *keyword.Matcher, cfg Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		session: session,
		matcher: matcher,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

type scanOutcome struct {
	status    int
	hit       bool
	keywords  []string
	content   string
	truncated bool
}

// ProcessDocument fetches one document, scans it, and writes the evidence
// file into dir on a match. The returned error is always specific to this
// document; callers skip and continue.
func (f *Fetcher) ProcessDocument(ctx context.Context, dir *stage.Dir, doc model.Document) (model.MatchResult, error) {
	if doc.IsPDF() {
		if !f.cfg.IncludePDF {
			metrics.DocumentsScanned.WithLabelValues(metrics.OutcomeSkipped).Inc()
			return model.MatchResult{}, nil
		}
		return f.processPDF(ctx, dir, doc)
	}

	out, err := f.streamScan(ctx, doc.URL, "document")
	if err != nil {
		return model.MatchResult{}, err
	}
	if out.status != http.StatusOK || !out.hit {
		metrics.DocumentsScanned.WithLabelValues(metrics.OutcomeNoMatch).Inc()
		return model.MatchResult{}, nil
	}

	result := f.buildResult(out, doc.IsHTML())
	metrics.DocumentsScanned.WithLabelValues(metrics.OutcomeMatch).Inc()

	if oversize, err := f.declaredOversize(ctx, doc.URL); err == nil && oversize {
		f.logger.Info("match in oversize document, evidence not saved",
			zap.String("doc", doc.Name),
			zap.String("accession", doc.Filing.Accession),
		)
		return result, nil
	}

	name := stage.DocumentFileName(dir.CIK(), doc.Filing.Form, doc.Filing.Filed, doc.Name)
	if _, err := dir.SaveDocument(name, []byte(out.content)); err != nil {
		return result, err
	}
	result.Saved = true
	f.logger.Info("saved", zap.String("file", name))
	return result, nil
}

// ProcessMasterText scans the filing's master text file. On a match the
// retained content becomes the record; otherwise a minimal outcome record
// is still written when the always-record policy is on.
func (f *Fetcher) ProcessMasterText(ctx context.Context, dir *stage.Dir, doc model.Document) (model.MatchResult, error) {
	out, err := f.streamScan(ctx, doc.URL, "master_text")
	if err != nil {
		return model.MatchResult{}, err
	}
	name := stage.MasterRecordFileName(dir.CIK(), doc.Filing.Form, doc.Filing.Filed, doc.Filing.Accession)

	if out.status == http.StatusOK && out.hit {
		result := f.buildResult(out, false)
		metrics.DocumentsScanned.WithLabelValues(metrics.OutcomeMatch).Inc()
		if oversize, err := f.declaredOversize(ctx, doc.URL); err == nil && oversize {
			f.logger.Info("match in oversize master text, record not saved",
				zap.String("accession", doc.Filing.Accession))
			return result, nil
		}
		if _, err := dir.SaveDocument(name, []byte(out.content)); err != nil {
			return result, err
		}
		result.Saved = true
		f.logger.Info("saved", zap.String("file", name))
		return result, nil
	}

	metrics.DocumentsScanned.WithLabelValues(metrics.OutcomeNoMatch).Inc()
	if f.cfg.MasterRecordAlways && out.status == http.StatusOK {
		record := fmt.Sprintf("no match: %s %s filed %s\n", doc.Filing.Form, doc.Filing.Accession, doc.Filing.Filed)
		if _, err := dir.SaveDocument(name, []byte(record)); err != nil {
			return model.MatchResult{}, err
		}
	}
	return model.MatchResult{}, nil
}

func (f *Fetcher) buildResult(out scanOutcome, isHTML bool) model.MatchResult {
	for _, k := range out.keywords {
		metrics.MatchesTotal.WithLabelValues(k).Inc()
	}
	var snippets []model.Snippet
	if isHTML {
		snippets = f.matcher.HTMLSnippets(out.content, f.cfg.SnippetRadius)
	} else {
		snippets = f.matcher.Snippets(out.content, f.cfg.SnippetRadius)
	}
	return model.MatchResult{
		Matched:   true,
		Keywords:  out.keywords,
		Snippets:  snippets,
		Content:   out.content,
		Truncated: out.truncated,
	}
}

// streamScan reads the body in chunks, feeding the matcher incrementally
// and keeping a bounded trailing context buffer. It stops reading as soon
// as a match plus enough trailing context is held, and never reads past
// the size cap.
func (f *Fetcher) streamScan(ctx context.Context, url, label string) (scanOutcome, error) {
	resp, err := f.session.Get(ctx, url, label)
	if err != nil {
		return scanOutcome{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return scanOutcome{status: resp.StatusCode}, nil
	}

	limited := &io.LimitedReader{R: resp.Body, N: f.cfg.MaxSaveBytes}
	body, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		// Undetectable charset: scan the raw bytes.
		body = limited
	}

	scanner := f.matcher.NewStreamScanner()
	chunk := make([]byte, f.cfg.ChunkBytes)
	var buf []byte
	for {
		if err := ctx.Err(); err != nil {
			return scanOutcome{}, err
		}
		n, readErr := body.Read(chunk)
		if n > 0 {
			metrics.BytesRead.Add(float64(n))
			piece := chunk[:n]
			scanner.Feed(string(piece))
			buf = append(buf, piece...)
			if len(buf) > f.cfg.ContextBytes {
				buf = buf[len(buf)-f.cfg.ContextBytes:]
			}
			if scanner.Matched() && len(buf) > f.cfg.EarlyExitBytes {
				return scanOutcome{
					status:   http.StatusOK,
					hit:      true,
					keywords: scanner.Keywords(),
					content:  string(buf),
				}, nil
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return scanOutcome{}, fmt.Errorf("read %s: %w", label, readErr)
		}
	}
	hit := scanner.Flush()

	// The cap and the body can end together; the content is truncated only
	// if the source still has bytes past the cap.
	truncated := false
	if limited.N <= 0 {
		var extra [1]byte
		if n, _ := resp.Body.Read(extra[:]); n > 0 {
			truncated = true
		}
	}
	return scanOutcome{
		status:    http.StatusOK,
		hit:       hit,
		keywords:  scanner.Keywords(),
		content:   string(buf),
		truncated: truncated,
	}, nil
}

// declaredOversize asks HEAD whether the document's declared size exceeds
// the save cap. Unknown sizes pass.
func (f *Fetcher) declaredOversize(ctx context.Context, url string) (bool, error) {
	head, err := f.session.Head(ctx, url, "head")
	if err != nil {
		return false, err
	}
	defer head.Body.Close()
	if head.StatusCode != http.StatusOK {
		return false, nil
	}
	return !edgar.SizeUnderLimit(head, f.cfg.MaxSaveBytes), nil
}

func (f *Fetcher) processPDF(ctx context.Context, dir *stage.Dir, doc model.Document) (model.MatchResult, error) {
	if oversize, err := f.declaredOversize(ctx, doc.URL); err == nil && oversize {
		metrics.DocumentsScanned.WithLabelValues(metrics.OutcomeSkipped).Inc()
		f.logger.Info("skip large pdf", zap.String("doc", doc.Name))
		return model.MatchResult{}, nil
	}

	data, err := f.fetchBytes(ctx, doc.URL)
	if errors.Is(err, ErrSizeExceeded) {
		metrics.DocumentsScanned.WithLabelValues(metrics.OutcomeSkipped).Inc()
		f.logger.Info("skip large pdf", zap.String("doc", doc.Name))
		return model.MatchResult{}, nil
	}
	if err != nil {
		return model.MatchResult{}, err
	}
	if len(data) == 0 {
		metrics.DocumentsScanned.WithLabelValues(metrics.OutcomeNoMatch).Inc()
		return model.MatchResult{}, nil
	}

	text := ExtractPDFText(data, maxPDFPages)
	if !f.matcher.Match(text) {
		metrics.DocumentsScanned.WithLabelValues(metrics.OutcomeNoMatch).Inc()
		return model.MatchResult{}, nil
	}

	result := model.MatchResult{
		Matched:  true,
		Keywords: f.matcher.FindAll(text),
		Snippets: f.matcher.Snippets(text, f.cfg.SnippetRadius),
	}
	for _, k := range result.Keywords {
		metrics.MatchesTotal.WithLabelValues(k).Inc()
	}
	metrics.DocumentsScanned.WithLabelValues(metrics.OutcomeMatch).Inc()

	name := stage.DocumentFileName(dir.CIK(), doc.Filing.Form, doc.Filing.Filed, doc.Name)
	if _, err := dir.SaveDocument(name, data); err != nil {
		return result, err
	}
	result.Saved = true
	f.logger.Info("saved", zap.String("file", name))
	return result, nil
}

// fetchBytes downloads the whole body, failing with ErrSizeExceeded once
// the cap is crossed.
func (f *Fetcher) fetchBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.session.Get(ctx, url, "document")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var data []byte
	chunk := make([]byte, f.cfg.ChunkBytes)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			metrics.BytesRead.Add(float64(n))
			data = append(data, chunk[:n]...)
			if int64(len(data)) > f.cfg.MaxSaveBytes {
				return nil, ErrSizeExceeded
			}
		}
		if readErr == io.EOF {
			return data, nil
		}
		if readErr != nil {
			return nil, fmt.Errorf("read pdf: %w", readErr)
		}
	}
}
