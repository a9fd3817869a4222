// Package ratelimit implements the process-wide request pacing gate.
//
// EDGAR enforces a hard per-host request ceiling, so the gate is global:
// one token bucket shared by every worker, sized just below the external
// limit. The limiter is the true backstop; pool sizes only bound memory.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/zmahayni/SEC-Crypto-Analysis/internal/metrics"
)

// Pacer blocks callers until one outbound request may be issued.
type Pacer interface {
	Acquire(ctx context.Context) error
}

// Limiter is the shared token-bucket gate. Safe for concurrent use from an
// arbitrary number of workers; waiters are served FIFO so none starves.
type Limiter struct {
	lim *rate.Limiter
}

// New creates a Limiter capped at rps requests per second. A non-positive
// rps disables pacing.
func New(rps float64) *Limiter {
	r := rate.Limit(rps)
	if rps <= 0 {
		r = rate.Inf
	}
	// Burst of 1 keeps the long-run and instantaneous rates identical,
	// which is what the external ceiling actually constrains.
	return &Limiter{lim: rate.NewLimiter(r, 1)}
}

// Acquire blocks until a token is available or the context finishes.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := l.lim.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(d)
	}
	return nil
}

type unlimited struct{}

func (unlimited) Acquire(ctx context.Context) error {
	return ctx.Err()
}

// Unlimited returns a zero-latency Pacer for tests.
func Unlimited() Pacer {
	return unlimited{}
}
