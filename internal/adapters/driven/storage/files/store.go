// Package files stores PDF artifacts on the local filesystem.
package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.FileStore = (*Store)(nil)

// Store writes artifacts under a single directory.
type Store struct {
	dir string
}

// NewStore creates the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving upload directory: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data atomically: a temp file in the same directory is
// renamed into place once fully written and synced.
func (s *Store) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: invalid stored filename %q", domain.ErrInvalidInput, name)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("storing %s: %w", name, err)
	}
	return path, nil
}

// Open reads a stored artifact. Paths outside the directory are rejected.
func (s *Store) Open(path string) (io.ReadCloser, error) {
	clean, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(clean)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: file %s", domain.ErrNotFound, filepath.Base(clean))
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(clean), err)
	}
	return f, nil
}

// Exists reports whether path holds an artifact.
func (s *Store) Exists(path string) bool {
	clean, err := s.resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(clean)
	return err == nil && info.Mode().IsRegular()
}

func (s *Store) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(s.dir, clean)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: path %q is outside storage", domain.ErrInvalidInput, path)
	}
	return clean, nil
}
