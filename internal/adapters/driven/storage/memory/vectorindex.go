package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is a brute-force cosine index.
type VectorIndex struct {
	mu        sync.RWMutex
	dimension int
	points    map[string]domain.Point

	// failNext holds injected failures keyed by operation.
	failNext map[string]error
}

// NewVectorIndex creates an empty index with no collection.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		points:   make(map[string]domain.Point),
		failNext: make(map[string]error),
	}
}

// FailNext makes the next call to op ("upsert", "search", "count",
// "delete" or "ensure") fail with err wrapped in ErrIndexUnavailable.
func (v *VectorIndex) FailNext(op string, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.failNext[op] = err
}

// injected must be called with v.mu held for writing.
func (v *VectorIndex) injected(op string) error {
	err, ok := v.failNext[op]
	if !ok {
		return nil
	}
	delete(v.failNext, op)
	return fmt.Errorf("%w: memory %s: %v", domain.ErrIndexUnavailable, op, err)
}

// EnsureCollection fixes the dimension on first call.
func (v *VectorIndex) EnsureCollection(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, dimension)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.injected("ensure"); err != nil {
		return err
	}
	if v.dimension == 0 {
		v.dimension = dimension
		return nil
	}
	if v.dimension != dimension {
		return fmt.Errorf("%w: collection has %d dimensions, embedding model produces %d",
			domain.ErrSchemaMismatch, v.dimension, dimension)
	}
	return nil
}

// Dimension returns the collection dimension, 0 before EnsureCollection.
func (v *VectorIndex) Dimension(_ context.Context) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.dimension, nil
}

// Upsert stores all points or none.
func (v *VectorIndex) Upsert(_ context.Context, points []domain.Point) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.injected("upsert"); err != nil {
		return err
	}
	for _, p := range points {
		if v.dimension == 0 || len(p.Vector) != v.dimension {
			return fmt.Errorf("%w: point %s has %d dimensions, collection has %d",
				domain.ErrSchemaMismatch, p.ID, len(p.Vector), v.dimension)
		}
	}
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		v.points[p.ID] = p
	}
	return nil
}

// Search scores every point, then filters by minConfidence, then keeps topK.
func (v *VectorIndex) Search(_ context.Context, vector []float32, topK int, minConfidence *float64) ([]domain.ScoredPoint, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.injected("search"); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	hits := make([]domain.ScoredPoint, 0, len(v.points))
	for _, p := range v.points {
		score := cosine(vector, p.Vector)
		if minConfidence != nil && score < *minConfidence {
			continue
		}
		hits = append(hits, domain.ScoredPoint{ID: p.ID, Score: score, Payload: p.Payload})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of points, optionally for one document.
func (v *VectorIndex) Count(_ context.Context, documentID *int64) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.injected("count"); err != nil {
		return 0, err
	}
	if documentID == nil {
		return len(v.points), nil
	}
	n := 0
	for _, p := range v.points {
		if p.Payload.DocumentID == *documentID {
			n++
		}
	}
	return n, nil
}

// DeleteDocument removes the document's points from fromIndex onwards.
func (v *VectorIndex) DeleteDocument(_ context.Context, documentID int64, fromIndex int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.injected("delete"); err != nil {
		return err
	}
	for id, p := range v.points {
		if p.Payload.DocumentID == documentID && p.Payload.ChunkIndex >= fromIndex {
			delete(v.points, id)
		}
	}
	return nil
}

// Points returns a copy of the stored points for one document, ordered by
// chunk index.
func (v *VectorIndex) Points(documentID int64) []domain.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []domain.Point
	for _, p := range v.points {
		if p.Payload.DocumentID == documentID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Payload.ChunkIndex < out[j].Payload.ChunkIndex })
	return out
}

// Close releases resources.
func (v *VectorIndex) Close() error {
	return nil
}

// cosine returns the similarity clamped to [0,1].
func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(0, math.Min(1, s))
}
