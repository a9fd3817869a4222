package stage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Archive is long-term storage for completed CompanyFolders. Staging and
// archive sit behind the same interface so the flusher never cares which
// backend receives the files.
type Archive interface {
	// Store writes one file of a company's folder and returns its URI.
	Store(ctx context.Context, cik, name string, r io.Reader) (string, error)
}

// LocalArchive stores company folders under a local directory tree, e.g. a
// cloud-synced folder.
type LocalArchive struct {
	base string
}

// NewLocalArchive prepares a filesystem-backed archive rooted at base.
func NewLocalArchive(base string) (*LocalArchive, error) {
	if strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	if err := os.MkdirAll(base, 0o750); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &LocalArchive{base: base}, nil
}

// Store writes the file to {base}/{cik}/{name} and returns a file:// URI.
func (a *LocalArchive) Store(ctx context.Context, cik, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, err := sanitizeName(name)
	if err != nil {
		return "", fmt.Errorf("archive store: %w", err)
	}
	dir := filepath.Join(a.base, cik)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create archive folder %s: %w", cik, err)
	}
	target := filepath.Join(dir, clean)

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create archive file %s: %w", clean, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("copy to archive %s: %w", clean, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close archive file %s: %w", clean, err)
	}
	return "file://" + target, nil
}
