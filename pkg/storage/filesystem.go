package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	appErrors "github.com/noah-isme/student-records/pkg/errors"
)

// FileStore persists each key as a JSON file under a base directory.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
}

// NewFileStore ensures the base directory exists and returns a handle.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		baseDir = "./data"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Get returns the stored bytes or ErrKeyNotFound.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErrors.ErrKeyNotFound
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Set replaces the value for key.
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	return s.SetMany(ctx, map[string][]byte{key: value})
}

// SetMany stages every value in a temp file before renaming any into place,
// so a failed write leaves all keys at their previous value.
func (s *FileStore) SetMany(ctx context.Context, entries map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]string, len(entries))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}
	for key, value := range entries {
		path, err := s.resolve(key)
		if err != nil {
			cleanup()
			return err
		}
		tmp, err := writeTemp(filepath.Dir(path), value)
		if err != nil {
			cleanup()
			return fmt.Errorf("stage %s: %w", key, err)
		}
		staged[path] = tmp
	}
	for path, tmp := range staged {
		if err := os.Rename(tmp, path); err != nil {
			cleanup()
			return fmt.Errorf("commit %s: %w", filepath.Base(path), err)
		}
		delete(staged, path)
	}
	return nil
}

// Remove deletes the keys, ignoring ones that are already absent.
func (s *FileStore) Remove(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		path, err := s.resolve(key)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}

// Path exposes the file backing a key (useful for debugging).
func (s *FileStore) Path(key string) string {
	path, _ := s.resolve(key)
	return path
}

func (s *FileStore) resolve(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid store key %q", key)
	}
	return filepath.Join(s.baseDir, key+".json"), nil
}

func writeTemp(dir string, data []byte) (string, error) {
	file, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	name := file.Name()
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}
