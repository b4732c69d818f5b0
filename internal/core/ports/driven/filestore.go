package driven

import (
	"context"
	"io"
)

// FileStore retains PDF artifacts. Files are never deleted by the core.
type FileStore interface {
	// Save writes data under name and returns the storage path.
	Save(ctx context.Context, name string, data []byte) (string, error)

	// Open reads a stored artifact.
	Open(path string) (io.ReadCloser, error)

	// Exists reports whether path holds an artifact.
	Exists(path string) bool
}
