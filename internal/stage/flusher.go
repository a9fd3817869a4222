package stage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Flusher migrates completed CompanyFolders from staging to the archive.
// Idempotent: only folders still present and bearing COMPLETE are moved,
// and a staged folder is deleted only after every file of it is confirmed
// written to the archive.
type Flusher struct {
	root    *Root
	archive Archive
	logger  *zap.Logger
}

// NewFlusher wires a Flusher over the staging root and an archive backend.
func NewFlusher(root *Root, archive Archive, logger *zap.Logger) *Flusher {
	return &Flusher{root: root, archive: archive, logger: logger}
}

// Flush moves every completed staged folder and reports (moved, failed).
// In-progress folders are left alone. A failure on one folder leaves it
// staged for the next flush and does not stop the others.
func (f *Flusher) Flush(ctx context.Context) (int, int, error) {
	ciks, err := f.root.CompanyDirs()
	if err != nil {
		return 0, 0, err
	}
	moved, failed := 0, 0
	for _, cik := range ciks {
		if err := ctx.Err(); err != nil {
			return moved, failed, err
		}
		dir := filepath.Join(f.root.Base(), cik)
		if !fileExists(filepath.Join(dir, MarkerComplete)) {
			continue
		}
		if err := f.flushFolder(ctx, cik, dir); err != nil {
			failed++
			f.logger.Error("flush folder failed", zap.String("cik", cik), zap.Error(err))
			continue
		}
		moved++
	}
	if moved > 0 || failed > 0 {
		f.logger.Info("flush finished", zap.Int("moved", moved), zap.Int("failed", failed))
	}
	return moved, failed, nil
}

func (f *Flusher) flushFolder(ctx context.Context, cik, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read folder: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if name == MarkerComplete || name == MarkerStaging || !entry.Type().IsRegular() {
			continue
		}
		if err := f.archiveFile(ctx, cik, filepath.Join(dir, name), name); err != nil {
			return err
		}
	}
	// Every file confirmed in the archive; the staged copy can go.
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove staged folder: %w", err)
	}
	return nil
}

func (f *Flusher) archiveFile(ctx context.Context, cik, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer src.Close()
	uri, err := f.archive.Store(ctx, cik, name, src)
	if err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	f.logger.Debug("archived", zap.String("cik", cik), zap.String("uri", uri))
	return nil
}
