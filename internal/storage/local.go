package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes documents to the local filesystem. Mostly useful for
// tests and dry runs.
type LocalStore struct {
	baseDir string
}

// NewLocalStore creates a new local filesystem store.
func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", baseDir, err)
	}

	return &LocalStore{baseDir: baseDir}, nil
}

// Put writes a document body to the local filesystem. The write is atomic:
// temp file + rename, so a crashed run never leaves half a document behind.
func (s *LocalStore) Put(_ context.Context, key string, body []byte) error {
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempPath := path + ".tmp"

	if err := os.WriteFile(tempPath, body, 0644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, path, err)
	}

	return nil
}

// Probe verifies the base directory is writable.
func (s *LocalStore) Probe(_ context.Context) error {
	f, err := os.CreateTemp(s.baseDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("base directory %s is not writable: %w", s.baseDir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// URI returns the canonical file:// URI for a key.
func (s *LocalStore) URI(key string) string {
	abs, err := filepath.Abs(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	if err != nil {
		abs = filepath.Join(s.baseDir, key)
	}
	return "file://" + abs
}

// Close implements ObjectStore.
func (s *LocalStore) Close() error { return nil }
