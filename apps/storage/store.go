package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Store persists an accepted upload under key and returns the path clients
// use to fetch it.
type Store interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Delete removes a file by the path Save returned
	Delete(ctx context.Context, path string) error
}

// LocalStore writes below Root; files are served at URLPrefix
type LocalStore struct {
	Root      string
	URLPrefix string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root, URLPrefix: "/uploads"}
}

func (s *LocalStore) Save(_ context.Context, key string, data []byte, _ string) (string, error) {
	// rooting the key first keeps it inside Root
	clean := path.Clean("/" + key)
	target := filepath.Join(s.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return s.URLPrefix + clean, nil
}

func (s *LocalStore) Delete(_ context.Context, stored string) error {
	if !strings.HasPrefix(stored, s.URLPrefix+"/") {
		return fmt.Errorf("path %s is not under %s", stored, s.URLPrefix)
	}
	clean := path.Clean("/" + strings.TrimPrefix(stored, s.URLPrefix))
	err := os.Remove(filepath.Join(s.Root, filepath.FromSlash(clean)))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
