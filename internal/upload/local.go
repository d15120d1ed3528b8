package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStorage keeps files in a directory on disk.
type LocalStorage struct {
	Dir string
}

// NewLocalStorage returns storage rooted at dir. The directory is created on
// first save.
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{Dir: dir}
}

// Save writes content to Dir/name and returns that path.
func (s *LocalStorage) Save(ctx context.Context, name string, content []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("LocalStorage.Save: creating %s: %w", s.Dir, err)
	}
	path := filepath.Join(s.Dir, filepath.Base(name))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("LocalStorage.Save: writing %s: %w", path, err)
	}
	return path, nil
}

// Fetch reads the file at storagePath.
func (s *LocalStorage) Fetch(ctx context.Context, storagePath string) ([]byte, error) {
	data, err := os.ReadFile(storagePath)
	if err != nil {
		return nil, fmt.Errorf("LocalStorage.Fetch: %w", err)
	}
	return data, nil
}
