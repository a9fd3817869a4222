// Package model defines core types shared across subsystems.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Company is one entry of the input roster. Immutable once loaded.
type Company struct {
	// CIK is the canonical company key: a 10-digit zero-padded numeric string.
	CIK string `json:"cik"`
	// Name is the display name from the roster.
	Name string `json:"name"`
}

// Filing is one EDGAR filing, sourced read-only from remote metadata.
type Filing struct {
	// Accession is the dashed accession number, unique per filing.
	Accession string `json:"accession"`
	// Form is the filing form type (10-K, 10-Q, ...).
	Form string `json:"form"`
	// Filed is the filing date as YYYY-MM-DD.
	Filed string `json:"filed"`
	// PrimaryDoc is the name of the primary document, if known.
	PrimaryDoc string `json:"primary_doc,omitempty"`
}

// Document is one exhibit of a Filing, addressed by its remote URL.
type Document struct {
	Filing  Filing `json:"filing"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Primary bool   `json:"primary"`
}

// IsPDF reports whether the document name carries a .pdf extension.
func (d Document) IsPDF() bool {
	return hasSuffixFold(d.Name, ".pdf")
}

// IsHTML reports whether the document is an HTML/HTM exhibit.
func (d Document) IsHTML() bool {
	return hasSuffixFold(d.Name, ".htm") || hasSuffixFold(d.Name, ".html")
}

func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	tail := s[len(s)-len(suffix):]
	for i := 0; i < len(suffix); i++ {
		a, b := tail[i], suffix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

// Snippet is one matched keyword occurrence with bounded surrounding context.
type Snippet struct {
	Keyword string `json:"keyword"`
	Context string `json:"context"`
}

// MatchResult is the outcome of scanning one Document. Ephemeral: the
// retained content is persisted to the staging folder on a hit and
// discarded otherwise.
type MatchResult struct {
	Matched  bool      `json:"matched"`
	Keywords []string  `json:"keywords,omitempty"`
	Snippets []Snippet `json:"snippets,omitempty"`
	// Content holds the bounded trailing context retained while streaming.
	Content string `json:"-"`
	// Truncated is set when the body was cut at the size cap.
	Truncated bool `json:"truncated,omitempty"`
	// Saved is set once the evidence file landed in the staging folder.
	Saved bool `json:"saved"`
}

// CompanyResult aggregates one Company Worker's run.
type CompanyResult struct {
	CIK              string
	FilingsScanned   int
	DocumentsScanned int
	DocumentsSaved   int
	Matches          int
	Skipped          bool
}

// ScanSummary is returned by the scheduler after a full run.
type ScanSummary struct {
	RunID              uuid.UUID     `json:"run_id"`
	Started            time.Time     `json:"started"`
	Elapsed            time.Duration `json:"elapsed"`
	CompaniesTotal     int           `json:"companies_total"`
	CompaniesRunning   int           `json:"companies_running"`
	CompaniesCompleted int           `json:"companies_completed"`
	CompaniesSkipped   int           `json:"companies_skipped"`
	CompaniesFailed    int           `json:"companies_failed"`
	DocumentsScanned   int           `json:"documents_scanned"`
	DocumentsSaved     int           `json:"documents_saved"`
	MatchesFound       int           `json:"matches_found"`
	Interrupted        bool          `json:"interrupted"`
	FoldersFlushed     int           `json:"folders_flushed"`
}
