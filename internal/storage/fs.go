package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSStore is a filesystem-backed ObjectStore rooted at a single directory.
type FSStore struct {
	root string
}

// NewFSStore constructs an FSStore, creating the root if needed.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// Put writes a blob at path, creating parent directories.
func (s *FSStore) Put(ctx context.Context, path string, contents io.Reader) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	f, err := os.Create(full)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, contents); err != nil {
		return err
	}
	return f.Sync()
}

// Open reads a blob at path.
func (s *FSStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (s *FSStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid object path %q", path)
	}
	return filepath.Join(s.root, clean), nil
}
