package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// faultyArchive fails Store for one CIK and records everything else.
type faultyArchive struct {
	failCIK string
	stored  map[string][]string
}

func newFaultyArchive(failCIK string) *faultyArchive {
	return &faultyArchive{failCIK: failCIK, stored: make(map[string][]string)}
}

func (a *faultyArchive) Store(_ context.Context, cik, name string, r io.Reader) (string, error) {
	if cik == a.failCIK {
		return "", errors.New("backend unavailable")
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	a.stored[cik] = append(a.stored[cik], name)
	return fmt.Sprintf("fake://%s/%s", cik, name), nil
}

func stagedCompany(t *testing.T, root *Root, cik string, complete bool) *Dir {
	t.Helper()
	dir, err := root.Open(cik)
	require.NoError(t, err)
	require.NoError(t, dir.WriteSIC("3571"))
	_, err = dir.SaveDocument(cik+"_10-K_2026-01-15_doc.htm", []byte("evidence"))
	require.NoError(t, err)
	if complete {
		require.NoError(t, dir.MarkComplete("done"))
	}
	return dir
}

func TestFlushMovesOnlyComplete(t *testing.T) {
	t.Parallel()

	root, err := NewRoot(t.TempDir())
	require.NoError(t, err)
	done := stagedCompany(t, root, "0000000001", true)
	open := stagedCompany(t, root, "0000000002", false)

	archive := newFaultyArchive("")
	moved, failed, err := NewFlusher(root, archive, zap.NewNop()).Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, moved)
	require.Equal(t, 0, failed)

	require.NoDirExists(t, done.Path(), "completed folder is gone from staging")
	require.DirExists(t, open.Path(), "in-progress folder stays")

	// Data files travel; markers do not.
	require.ElementsMatch(t,
		[]string{"SIC.txt", "0000000001_10-K_2026-01-15_doc.htm"},
		archive.stored["0000000001"])
}

func TestFlushKeepsFolderOnBackendFailure(t *testing.T) {
	t.Parallel()

	root, err := NewRoot(t.TempDir())
	require.NoError(t, err)
	bad := stagedCompany(t, root, "0000000001", true)
	good := stagedCompany(t, root, "0000000002", true)

	archive := newFaultyArchive("0000000001")
	flusher := NewFlusher(root, archive, zap.NewNop())

	moved, failed, err := flusher.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, moved)
	require.Equal(t, 1, failed)
	require.DirExists(t, bad.Path(), "failed folder is never deleted")
	require.NoDirExists(t, good.Path())

	// The next flush picks the kept folder up once the backend recovers.
	archive.failCIK = ""
	moved, failed, err = flusher.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, moved)
	require.Equal(t, 0, failed)
	require.NoDirExists(t, bad.Path())
}

func TestFlushIdempotent(t *testing.T) {
	t.Parallel()

	root, err := NewRoot(t.TempDir())
	require.NoError(t, err)
	stagedCompany(t, root, "0000000001", true)

	flusher := NewFlusher(root, newFaultyArchive(""), zap.NewNop())
	moved, _, err := flusher.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, moved)

	moved, failed, err := flusher.Flush(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, moved)
	require.Equal(t, 0, failed)
}

func TestFlushStopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	root, err := NewRoot(t.TempDir())
	require.NoError(t, err)
	stagedCompany(t, root, "0000000001", true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = NewFlusher(root, newFaultyArchive(""), zap.NewNop()).Flush(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLocalArchiveStore(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	archive, err := NewLocalArchive(base)
	require.NoError(t, err)

	uri, err := archive.Store(context.Background(), "0000320193", "doc.htm",
		strings.NewReader("payload"))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(base, "0000320193", "doc.htm"), uri)

	data, err := os.ReadFile(filepath.Join(base, "0000320193", "doc.htm"))
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	_, err = archive.Store(context.Background(), "0000320193", "../escape", strings.NewReader("x"))
	require.NoError(t, err, "traversal components are stripped, not fatal")
	require.FileExists(t, filepath.Join(base, "0000320193", "escape"))

	_, err = NewLocalArchive(" ")
	require.Error(t, err)
}
