package driven

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// VectorIndex owns the single named collection of chunk vectors.
// Collection name and distance metric (cosine) are fixed configuration.
//
// Every transport or availability failure must surface wrapped in
// domain.ErrIndexUnavailable.
type VectorIndex interface {
	// EnsureCollection creates the collection if absent. It is a no-op when
	// the collection exists with the same dimension and returns
	// domain.ErrSchemaMismatch when the dimension differs.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert writes all points in a single atomic call.
	Upsert(ctx context.Context, points []domain.Point) error

	// Search returns up to topK points by descending similarity.
	// When minConfidence is set, lower-scoring points are excluded
	// before the topK cut.
	Search(ctx context.Context, vector []float32, topK int, minConfidence *float64) ([]domain.ScoredPoint, error)

	// Count returns the number of points, optionally scoped to one document.
	Count(ctx context.Context, documentID *int64) (int, error)

	// DeleteDocument removes the document's points whose chunk index is
	// at least fromIndex. Passing 0 removes every point of the document.
	DeleteDocument(ctx context.Context, documentID int64, fromIndex int) error

	// Close releases resources.
	Close() error
}
