package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveShardsByDate(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("recommendations.csv", []byte("a,b\n"))
	require.NoError(t, err)
	require.NotEqual(t, "recommendations.csv", rel)
	require.Equal(t, "recommendations.csv", filepath.Base(rel))

	prefix := time.Now().UTC().Format("2006/01")
	require.Equal(t, prefix, filepath.ToSlash(filepath.Dir(rel)))

	file, err := store.Open(rel)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}

func TestLocalStorageKeepsExplicitLayout(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("archive/report.csv", []byte("x"))
	require.NoError(t, err)
	require.Equal(t, "archive/report.csv", filepath.ToSlash(rel))
}

func TestLocalStorageRejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Open("../outside.csv")
	require.ErrorIs(t, err, ErrInvalidPath)

	_, err = store.Save("/etc/passwd", []byte("x"))
	require.ErrorIs(t, err, ErrInvalidPath)

	err = store.Delete("a/../../outside.csv")
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	oldRel, err := store.Save("old.csv", []byte("old"))
	require.NoError(t, err)
	freshRel, err := store.Save("fresh.csv", []byte("fresh"))
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path(oldRel), past, past))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	require.Equal(t, filepath.ToSlash(oldRel), filepath.ToSlash(deleted[0]))

	_, err = store.Open(oldRel)
	require.Error(t, err)
	file, err := store.Open(freshRel)
	require.NoError(t, err)
	require.NoError(t, file.Close())
}
