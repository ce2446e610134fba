package filesystem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/layertree/internal/interfaces"
)

// Store persists each key as a yaml document under a base directory.
type Store struct {
	basePath string
}

// NewStore creates a new filesystem-based gateway.
func NewStore(basePath string) (*Store, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return &Store{
		basePath: basePath,
	}, nil
}

// BasePath returns the directory holding the documents.
func (s *Store) BasePath() string {
	return s.basePath
}

// Save writes value to <key>.yaml, replacing the previous document.
func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}

	return nil
}

// Load reads the document stored for key.
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}

	return content, nil
}

// Keys lists the stored keys.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(entry.Name(), ".yaml"))
	}

	return keys, nil
}

// Delete removes the document for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return interfaces.ErrKeyNotFound
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}

	return nil
}

func (s *Store) Close() error { return nil }

// Internal helpers

func (s *Store) keyPath(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.basePath, key+".yaml"), nil
}

var _ interfaces.Gateway = (*Store)(nil)
