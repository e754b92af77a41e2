package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidPath rejects names that would escape the storage root. File
// paths arrive embedded in download tokens, so they are validated again
// here even though the token signature already covers them.
var ErrInvalidPath = errors.New("path escapes storage root")

// LocalStorage persists generated report files on disk. New files are
// sharded into YYYY/MM subdirectories so cleanup and manual inspection stay
// manageable as exports accumulate.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create exports directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Save writes data under a dated subdirectory and returns the relative path
// callers must use for Open and Delete.
func (s *LocalStorage) Save(filename string, data []byte) (string, error) {
	rel := shardedName(filename)
	path, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return rel, nil
}

// Open returns a read-only handle for a previously saved file.
func (s *LocalStorage) Open(relPath string) (*os.File, error) {
	path, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(relPath string) error {
	path, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete export file: %w", err)
	}
	return nil
}

// CleanupOlderThan removes files past the TTL, prunes emptied date
// directories and returns the deleted relative paths.
func (s *LocalStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	deleted := make([]string, 0)
	err := filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		rel, relErr := filepath.Rel(s.baseDir, path)
		if relErr != nil {
			rel = path
		}
		deleted = append(deleted, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup exports: %w", err)
	}
	s.pruneEmptyDirs()
	return deleted, nil
}

// Path returns the absolute location of a stored name. Diagnostics only; it
// performs no containment check.
func (s *LocalStorage) Path(relPath string) string {
	return filepath.Join(s.baseDir, relPath)
}

// shardedName places bare filenames under YYYY/MM. Names that already carry
// a directory keep their layout.
func shardedName(filename string) string {
	if strings.Contains(filename, "/") || strings.ContainsRune(filename, os.PathSeparator) {
		return filename
	}
	now := time.Now().UTC()
	return filepath.Join(now.Format("2006"), now.Format("01"), filename)
}

func (s *LocalStorage) resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", ErrInvalidPath
	}
	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve storage root: %w", err)
	}
	abs := filepath.Join(base, filepath.Clean(name))
	if abs != base && !strings.HasPrefix(abs, base+string(os.PathSeparator)) {
		return "", ErrInvalidPath
	}
	return abs, nil
}

// pruneEmptyDirs removes dated directories emptied by cleanup, deepest
// first. os.Remove refuses non-empty directories, so a directory that
// gained a file mid-walk simply stays.
func (s *LocalStorage) pruneEmptyDirs() {
	var dirs []string
	_ = filepath.WalkDir(s.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == s.baseDir {
			return nil
		}
		dirs = append(dirs, path)
		return nil
	})
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i])
	}
}
