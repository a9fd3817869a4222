// Package metrics exposes Prometheus instrumentation for the scanner.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts outbound EDGAR requests by endpoint and status class.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secscan",
		Name:      "requests_total",
		Help:      "Outbound EDGAR requests by endpoint and HTTP status class.",
	}, []string{"endpoint", "status"})

	// RetriesTotal counts retry attempts after transient failures.
	RetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "secscan",
		Name:      "retries_total",
		Help:      "Retry attempts after transient network failures or 429s.",
	})

	// RateLimitDelay observes time spent blocked in the rate limiter gate.
	RateLimitDelay = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "secscan",
		Name:      "rate_limit_delay_seconds",
		Help:      "Delay introduced by the global request pacer.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	// BytesRead counts document body bytes read from EDGAR.
	BytesRead = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "secscan",
		Name:      "bytes_read_total",
		Help:      "Document body bytes streamed from EDGAR.",
	})

	// DocumentsScanned counts scanned documents by outcome.
	DocumentsScanned = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secscan",
		Name:      "documents_scanned_total",
		Help:      "Documents scanned, labeled match/no_match/skipped.",
	}, []string{"outcome"})

	// MatchesTotal counts keyword hits by canonical keyword.
	MatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secscan",
		Name:      "keyword_matches_total",
		Help:      "Keyword occurrences found in scanned documents.",
	}, []string{"keyword"})

	// CompaniesTotal counts companies by terminal state.
	CompaniesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "secscan",
		Name:      "companies_total",
		Help:      "Companies processed, labeled completed/skipped/failed.",
	}, []string{"state"})
)

// Document outcome and company state label values.
const (
	OutcomeMatch   = "match"
	OutcomeNoMatch = "no_match"
	OutcomeSkipped = "skipped"

	StateCompleted = "completed"
	StateSkipped   = "skipped"
	StateFailed    = "failed"
)

// ObserveRateLimitDelay records one pacer wait.
func ObserveRateLimitDelay(d time.Duration) {
	RateLimitDelay.Observe(d.Seconds())
}

// IncRequest records one outbound request.
func IncRequest(endpoint, statusClass string) {
	RequestsTotal.WithLabelValues(endpoint, statusClass).Inc()
}

// StatusClass maps an HTTP status code to its metric label.
func StatusClass(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
