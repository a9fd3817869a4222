// Package edgar talks to the SEC EDGAR endpoints: submissions metadata,
// per-filing document indexes, document content, and the master text file.
package edgar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zmahayni/SEC-Crypto-Analysis/internal/metrics"
	"github.com/zmahayni/SEC-Crypto-Analysis/internal/ratelimit"
)

// ErrRetriesExhausted marks a request abandoned after the retry budget.
var ErrRetriesExhausted = errors.New("retries exhausted")

// SessionConfig captures per-session HTTP behavior.
type SessionConfig struct {
	// Contact identifies the operator to EDGAR; appended to the UA string.
	Contact        string
	UserAgent      string
	DataBaseURL    string
	ArchiveBaseURL string
	Timeout        time.Duration
	MaxRetries     int
	Backoff        []time.Duration
}

// Session is a reusable connection context owned by exactly one worker.
// It carries its own transport pool so workers never share connections,
// and routes every request through the shared pacer.
type Session struct {
	client    *http.Client
	transport *http.Transport
	pacer     ratelimit.Pacer
	cfg       SessionConfig
	logger    *zap.Logger
}

// NewSession builds a Session with a dedicated transport.
func NewSession(cfg SessionConfig, pacer ratelimit.Pacer, logger *zap.Logger) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if len(cfg.Backoff) == 0 {
		cfg.Backoff = []time.Duration{15 * time.Second, 30 * time.Second, 60 * time.Second}
	}
	transport := &http.Transport{
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Session{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		transport: transport,
		pacer:     pacer,
		cfg:       cfg,
		logger:    logger,
	}
}

// Close releases the session's pooled connections. Safe on all exit paths.
func (s *Session) Close() {
	s.transport.CloseIdleConnections()
}

// Get issues a paced GET with the retry policy. The caller owns the body.
// Non-retryable statuses (404 and friends) come back as the response.
func (s *Session) Get(ctx context.Context, url, label string) (*http.Response, error) {
	return s.do(ctx, http.MethodGet, url, label)
}

// Head issues a paced HEAD with the retry policy.
func (s *Session) Head(ctx context.Context, url, label string) (*http.Response, error) {
	return s.do(ctx, http.MethodHead, url, label)
}

func (s *Session) do(ctx context.Context, method, url, label string) (*http.Response, error) {
	var lastErr error
	attempt := 0
	rateLimited := 0
	for attempt < s.cfg.MaxRetries && rateLimited < s.cfg.MaxRetries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.pacer.Acquire(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request %s: %w", label, err)
		}
		req.Header.Set("User-Agent", s.userAgent())
		req.Header.Set("Accept", "application/json, text/html, */*")

		resp, err := s.client.Do(req)
		if err != nil {
			metrics.IncRequest(label, "error")
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			wait := s.backoffAt(attempt)
			s.logger.Warn("net error, backing off",
				zap.String("label", label),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
			metrics.RetriesTotal.Inc()
			attempt++
			if serr := sleep(ctx, wait); serr != nil {
				return nil, serr
			}
			continue
		}
		metrics.IncRequest(label, metrics.StatusClass(resp.StatusCode))

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			// An explicit Retry-After hint is honored exactly and does not
			// burn a generic backoff attempt.
			wait, hinted := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
			if !hinted {
				wait = s.backoffAt(attempt)
				attempt++
			} else {
				rateLimited++
			}
			drain(resp)
			s.logger.Info("429 from EDGAR, sleeping",
				zap.String("label", label),
				zap.Duration("wait", wait),
				zap.Bool("retry_after", hinted),
			)
			metrics.RetriesTotal.Inc()
			lastErr = fmt.Errorf("status 429")
			if serr := sleep(ctx, wait); serr != nil {
				return nil, serr
			}
		case resp.StatusCode >= 500:
			wait := s.backoffAt(attempt)
			drain(resp)
			s.logger.Warn("server error, backing off",
				zap.String("label", label),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
				zap.Duration("wait", wait),
			)
			metrics.RetriesTotal.Inc()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			attempt++
			if serr := sleep(ctx, wait); serr != nil {
				return nil, serr
			}
		default:
			return resp, nil
		}
	}
	return nil, fmt.Errorf("%s after %d attempts (%v): %w", label, attempt+rateLimited, lastErr, ErrRetriesExhausted)
}

func (s *Session) userAgent() string {
	ua := strings.TrimSpace(s.cfg.UserAgent)
	contact := strings.TrimSpace(s.cfg.Contact)
	if ua == "" {
		return contact
	}
	return ua + " " + contact
}

func (s *Session) backoffAt(attempt int) time.Duration {
	if attempt >= len(s.cfg.Backoff) {
		return s.cfg.Backoff[len(s.cfg.Backoff)-1]
	}
	return s.cfg.Backoff[attempt]
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms.
func parseRetryAfter(header string, now time.Time) (time.Duration, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}
	if secs, err := strconv.ParseFloat(header, 64); err == nil && secs >= 0 {
		return time.Duration(secs * float64(time.Second)), true
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func drain(resp *http.Response) {
	if resp.Body != nil {
		_ = resp.Body.Close()
	}
}

// sleep waits for d or until the context finishes.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SizeUnderLimit reports whether the declared Content-Length fits the cap.
// Unknown sizes pass; the streaming reader enforces the cap regardless.
func SizeUnderLimit(resp *http.Response, capBytes int64) bool {
	cl := resp.Header.Get("Content-Length")
	if cl == "" {
		return true
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil {
		return true
	}
	return n <= capBytes
}
