// Package ledger persists the append-only record of completed companies.
//
// The ledger is the authoritative source for "fully done": one 10-digit CIK
// per line, human-readable, appended and synced to durable storage before a
// completion counts. It is read fully at startup to build the skip-set and
// never rewritten.
package ledger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Ledger is the durable completion log plus its in-memory skip-set.
type Ledger struct {
	mu    sync.Mutex
	path  string
	done  map[string]struct{}
	order []string
}

// Open loads the ledger at path, creating parent directories as needed. A
// missing file is an empty ledger.
func Open(path string) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	l := &Ledger{path: path, done: make(map[string]struct{})}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		cik := strings.TrimSpace(scanner.Text())
		if cik == "" {
			continue
		}
		if _, ok := l.done[cik]; ok {
			continue
		}
		l.done[cik] = struct{}{}
		l.order = append(l.order, cik)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return l, nil
}

// Has reports whether cik has been durably recorded as complete.
func (l *Ledger) Has(cik string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.done[cik]
	return ok
}

// Append durably records cik as complete. Appends are serialized and the
// line is synced to disk before Append returns, so a crash afterwards still
// shows the company as done. Re-appending a recorded CIK is a no-op.
func (l *Ledger) Append(cik string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.done[cik]; ok {
		return nil
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open ledger for append: %w", err)
	}
	if _, err := f.WriteString(cik + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", cik, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}

	l.done[cik] = struct{}{}
	l.order = append(l.order, cik)
	return nil
}

// Last returns the most recently recorded CIK, or "" for an empty ledger.
func (l *Ledger) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.order) == 0 {
		return ""
	}
	return l.order[len(l.order)-1]
}

// Len returns the number of recorded completions.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// Path returns the on-disk location.
func (l *Ledger) Path() string {
	return l.path
}
