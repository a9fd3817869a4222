// Package keyword implements the cryptocurrency keyword matcher.
//
// Matching is exact and case-insensitive against a fixed alternation of
// phrases; hyphen-or-space variants within a phrase are part of the
// alternation, never fuzzy. Word-boundary anchors keep sub-words from
// matching: "ether" inside "ethereum" is not a hit for "ether" because
// "ether" is not a term, and "digitalasset" has no internal boundary.
package keyword

import (
	"regexp"
	"strings"
)

// pattern mirrors the fixed research keyword set.
const pattern = `(?i)\b(` +
	`bitcoin|blockchain|ethereum|cryptocurrency|` +
	`digital[- ]asset|distributed[- ]ledger|non[- ]fungible[- ]token|crypto[- ]asset` +
	`)\b`

// maxPhraseBytes bounds the longest phrase; stream scanning keeps this much
// overlap across chunk seams so no match is split.
const maxPhraseBytes = 32

// Matcher matches the crypto keyword set in text.
type Matcher struct {
	re *regexp.Regexp
}

// New compiles the keyword matcher.
func New() *Matcher {
	return &Matcher{re: regexp.MustCompile(pattern)}
}

// Match reports whether s contains any keyword.
func (m *Matcher) Match(s string) bool {
	return m.re.MatchString(s)
}

// FindAll returns the distinct canonical keywords present in s, in first-hit
// order.
func (m *Matcher) FindAll(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, hit := range m.re.FindAllString(s, -1) {
		k := Canonical(hit)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Canonical lowercases a matched phrase and folds its hyphen variant, so
// "Digital-Asset" and "digital asset" count as one keyword.
func Canonical(hit string) string {
	return strings.ReplaceAll(strings.ToLower(hit), "-", " ")
}

// StreamScanner applies the matcher incrementally to chunked input. It keeps
// a small overlap tail so phrases split across chunk boundaries still match.
//
// The seams need care on both edges. The trim can cut mid-word, so the
// scanner remembers whether the tail's first byte continues a word from
// discarded text; a match starting there is a fabricated boundary, not a
// hit. A match ending flush at the window end is held back until the next
// chunk (or Flush at end of input) confirms the closing boundary, so
// "bitcoins" split as "bitcoin|s" never matches.
type StreamScanner struct {
	m       *Matcher
	tail    string
	midWord bool
	matched bool
	seen    map[string]struct{}
	order   []string
}

// NewStreamScanner creates a scanner bound to m.
func (m *Matcher) NewStreamScanner() *StreamScanner {
	return &StreamScanner{m: m, seen: make(map[string]struct{})}
}

// Feed scans one chunk and reports whether any keyword has matched so far.
func (s *StreamScanner) Feed(chunk string) bool {
	if chunk == "" {
		return s.matched
	}
	window := s.tail + chunk
	for _, loc := range s.m.re.FindAllStringIndex(window, -1) {
		if loc[0] == 0 && s.midWord {
			continue
		}
		if loc[1] == len(window) {
			// Closing boundary unconfirmed; the span survives in the tail
			// and is re-examined against the next chunk.
			continue
		}
		s.record(window[loc[0]:loc[1]])
	}
	if len(window) > maxPhraseBytes {
		cut := len(window) - maxPhraseBytes
		s.midWord = isWordByte(window[cut-1])
		s.tail = window[cut:]
	} else {
		s.tail = window
	}
	return s.matched
}

// Flush resolves matches held back at the end of input, where the stream's
// end is a genuine word boundary. Call once after the final Feed.
func (s *StreamScanner) Flush() bool {
	for _, loc := range s.m.re.FindAllStringIndex(s.tail, -1) {
		if loc[0] == 0 && s.midWord {
			continue
		}
		s.record(s.tail[loc[0]:loc[1]])
	}
	return s.matched
}

func (s *StreamScanner) record(hit string) {
	s.matched = true
	k := Canonical(hit)
	if _, ok := s.seen[k]; !ok {
		s.seen[k] = struct{}{}
		s.order = append(s.order, k)
	}
}

// isWordByte mirrors regexp's \w class, which is what \b anchors against.
func isWordByte(b byte) bool {
	return b == '_' ||
		'0' <= b && b <= '9' ||
		'a' <= b && b <= 'z' ||
		'A' <= b && b <= 'Z'
}

// Matched reports whether any keyword has been seen.
func (s *StreamScanner) Matched() bool {
	return s.matched
}

// Keywords returns the distinct canonical keywords seen, in first-hit order.
func (s *StreamScanner) Keywords() []string {
	return append([]string(nil), s.order...)
}
