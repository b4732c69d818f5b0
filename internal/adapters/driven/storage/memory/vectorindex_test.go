package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

func point(docID int64, index int, vec ...float32) domain.Point {
	return domain.Point{
		ID:     fmt.Sprintf("%d-%d", docID, index),
		Vector: vec,
		Payload: domain.ChunkPayload{
			DocumentID: docID,
			ChunkIndex: index,
			Text:       fmt.Sprintf("doc %d chunk %d", docID, index),
		},
	}
}

func TestVectorIndex_EnsureCollection(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()

	assert.ErrorIs(t, idx.EnsureCollection(ctx, 0), domain.ErrInvalidInput)
	require.NoError(t, idx.EnsureCollection(ctx, 3))
	require.NoError(t, idx.EnsureCollection(ctx, 3))
	assert.ErrorIs(t, idx.EnsureCollection(ctx, 4), domain.ErrSchemaMismatch)

	dim, err := idx.Dimension(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dim)
}

func TestVectorIndex_UpsertIsAllOrNothing(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()
	require.NoError(t, idx.EnsureCollection(ctx, 2))

	err := idx.Upsert(ctx, []domain.Point{point(1, 0, 1, 0), point(1, 1, 1, 0, 0)})
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)

	n, err := idx.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVectorIndex_UpsertReplacesByID(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()
	require.NoError(t, idx.EnsureCollection(ctx, 2))

	require.NoError(t, idx.Upsert(ctx, []domain.Point{point(1, 0, 1, 0), point(1, 1, 0, 1)}))
	require.NoError(t, idx.Upsert(ctx, []domain.Point{point(1, 0, 1, 0), point(1, 1, 0, 1)}))

	id := int64(1)
	n, err := idx.Count(ctx, &id)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestVectorIndex_Search(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()
	require.NoError(t, idx.EnsureCollection(ctx, 2))
	require.NoError(t, idx.Upsert(ctx, []domain.Point{
		point(1, 0, 1, 0),
		point(1, 1, 0.8, 0.6),
		point(2, 0, 0, 1),
		point(2, 1, -1, 0),
	}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 4)
	assert.Equal(t, "1-0", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.InDelta(t, 0.8, hits[1].Score, 1e-6)
	assert.Zero(t, hits[3].Score, "negative similarity clamps to 0")

	threshold := 0.5
	filtered, err := idx.Search(ctx, []float32{1, 0}, 1, &threshold)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "doc 1 chunk 0", filtered[0].Payload.Text)

	high := 0.99999
	none, err := idx.Search(ctx, []float32{0.5, 0.5}, 5, &high)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestVectorIndex_DeleteDocument(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()
	require.NoError(t, idx.EnsureCollection(ctx, 2))
	require.NoError(t, idx.Upsert(ctx, []domain.Point{
		point(1, 0, 1, 0), point(1, 1, 1, 0), point(1, 2, 1, 0), point(2, 0, 0, 1),
	}))

	require.NoError(t, idx.DeleteDocument(ctx, 1, 1))
	assert.Len(t, idx.Points(1), 1)
	assert.Len(t, idx.Points(2), 1)

	require.NoError(t, idx.DeleteDocument(ctx, 1, 0))
	assert.Empty(t, idx.Points(1))

	total, err := idx.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestVectorIndex_FailNext(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()
	idx.FailNext("count", errors.New("connection refused"))

	_, err := idx.Count(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)

	_, err = idx.Count(ctx, nil)
	assert.NoError(t, err, "injected failure is consumed")
}
