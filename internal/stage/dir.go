// Package stage manages CompanyFolders: the staging directory tree, its
// marker protocol, and the flush to long-term storage.
//
// A CompanyFolder is either fully absent, in-progress (.STAGING present),
// or complete (COMPLETE present). The progress ledger is authoritative for
// "fully done"; the markers for "in-progress vs not started".
package stage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Marker and metadata file names inside a CompanyFolder.
const (
	MarkerStaging  = ".STAGING"
	MarkerComplete = "COMPLETE"
	SICFileName    = "SIC.txt"
)

// Root is the staging root directory, keyed by company CIK.
type Root struct {
	base string
}

// NewRoot prepares the staging root, creating it if needed and verifying it
// is a writable directory.
func NewRoot(base string) (*Root, error) {
	if strings.TrimSpace(base) == "" {
		return nil, fmt.Errorf("staging directory is required")
	}
	info, err := os.Stat(base)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(base, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create staging dir: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat staging dir: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("staging path %s is not a directory", base)
	}

	canary := filepath.Join(base, ".writable_test")
	if err := os.WriteFile(canary, []byte("ok"), 0o600); err != nil {
		return nil, fmt.Errorf("staging dir is not writable: %w", err)
	}
	if err := os.Remove(canary); err != nil {
		return nil, fmt.Errorf("remove writability check file: %w", err)
	}
	return &Root{base: base}, nil
}

// Base returns the staging root path.
func (r *Root) Base() string {
	return r.base
}

// Open creates (or reopens) the CompanyFolder for cik and marks it
// in-progress.
func (r *Root) Open(cik string) (*Dir, error) {
	path := filepath.Join(r.base, cik)
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create company folder %s: %w", cik, err)
	}
	if err := os.WriteFile(filepath.Join(path, MarkerStaging), []byte("in-progress"), 0o600); err != nil {
		return nil, fmt.Errorf("write staging marker for %s: %w", cik, err)
	}
	// A reopened folder is being rescanned; a leftover COMPLETE marker
	// must not survive into the new pass.
	if err := os.Remove(filepath.Join(path, MarkerComplete)); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("clear stale complete marker for %s: %w", cik, err)
	}
	return &Dir{cik: cik, path: path}, nil
}

// CompanyDirs lists the CIKs with a folder under the staging root.
func (r *Root) CompanyDirs() ([]string, error) {
	entries, err := os.ReadDir(r.base)
	if err != nil {
		return nil, fmt.Errorf("read staging root: %w", err)
	}
	var ciks []string
	for _, e := range entries {
		if e.IsDir() {
			ciks = append(ciks, e.Name())
		}
	}
	return ciks, nil
}

// Reconcile repairs the crash window between the COMPLETE marker write and
// the ledger append: a folder bearing COMPLETE without a ledger entry is
// demoted to in-progress so the company is rescanned. Returns the number of
// demoted folders.
func (r *Root) Reconcile(inLedger func(cik string) bool, logger *zap.Logger) (int, error) {
	ciks, err := r.CompanyDirs()
	if err != nil {
		return 0, err
	}
	demoted := 0
	for _, cik := range ciks {
		path := filepath.Join(r.base, cik)
		complete := fileExists(filepath.Join(path, MarkerComplete))
		if !complete || inLedger(cik) {
			continue
		}
		if err := os.Remove(filepath.Join(path, MarkerComplete)); err != nil {
			return demoted, fmt.Errorf("remove stale complete marker for %s: %w", cik, err)
		}
		if err := os.WriteFile(filepath.Join(path, MarkerStaging), []byte("in-progress"), 0o600); err != nil {
			return demoted, fmt.Errorf("restore staging marker for %s: %w", cik, err)
		}
		logger.Warn("complete marker without ledger entry, will rescan", zap.String("cik", cik))
		demoted++
	}
	return demoted, nil
}

// SizeBytes walks the staging tree and sums regular file sizes.
func (r *Root) SizeBytes() (int64, error) {
	var total int64
	err := filepath.Walk(r.base, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk staging tree: %w", err)
	}
	return total, nil
}

// Dir is one company's staging folder.
type Dir struct {
	cik  string
	path string
}

// CIK returns the owning company key.
func (d *Dir) CIK() string {
	return d.cik
}

// Path returns the folder location.
func (d *Dir) Path() string {
	return d.path
}

// WriteSIC persists the company's industry classification code.
func (d *Dir) WriteSIC(code string) error {
	if err := os.WriteFile(filepath.Join(d.path, SICFileName), []byte(code), 0o600); err != nil {
		return fmt.Errorf("write SIC for %s: %w", d.cik, err)
	}
	return nil
}

// SaveDocument writes one evidence file into the folder and returns its
// path. The name is sanitized so remote document names cannot escape the
// folder.
func (d *Dir) SaveDocument(name string, data []byte) (string, error) {
	clean, err := sanitizeName(name)
	if err != nil {
		return "", fmt.Errorf("save document for %s: %w", d.cik, err)
	}
	target := filepath.Join(d.path, clean)
	if err := os.WriteFile(target, data, 0o600); err != nil {
		return "", fmt.Errorf("write document %s: %w", clean, err)
	}
	return target, nil
}

// MarkComplete records full completion: COMPLETE written, .STAGING removed.
func (d *Dir) MarkComplete(note string) error {
	if err := os.WriteFile(filepath.Join(d.path, MarkerComplete), []byte(note), 0o600); err != nil {
		return fmt.Errorf("write complete marker for %s: %w", d.cik, err)
	}
	if err := os.Remove(filepath.Join(d.path, MarkerStaging)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove staging marker for %s: %w", d.cik, err)
	}
	return nil
}

// Complete reports whether the COMPLETE marker is present.
func (d *Dir) Complete() bool {
	return fileExists(filepath.Join(d.path, MarkerComplete))
}

// DocumentFileName yields the fixed evidence naming convention:
// {CIK}_{FORM}_{YYYY-MM-DD}_{DOCNAME}.
func DocumentFileName(cik, form, filed, docName string) string {
	return fmt.Sprintf("%s_%s_%s_%s", cik, form, filed, docName)
}

// MasterRecordFileName names the master-text fallback record:
// {CIK}_{FORM}_{YYYY-MM-DD}_{ACCESSION}.txt.
func MasterRecordFileName(cik, form, filed, accession string) string {
	return fmt.Sprintf("%s_%s_%s_%s.txt", cik, form, filed, accession)
}

func sanitizeName(name string) (string, error) {
	clean := filepath.Base(filepath.Clean(name))
	if clean == "." || clean == ".." || clean == string(filepath.Separator) || clean == "" {
		return "", fmt.Errorf("unusable document name %q", name)
	}
	if strings.ContainsAny(clean, "/\\") {
		return "", fmt.Errorf("path separator in document name %q", name)
	}
	return clean, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
