package local

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestEmbed_Deterministic(t *testing.T) {
	s := NewEmbeddingService(0)
	assert.Equal(t, DefaultDimensions, s.Dimensions())

	a, err := s.Embed(context.Background(), "Vector databases store embeddings")
	require.NoError(t, err)
	b, err := NewEmbeddingService(0).Embed(context.Background(), "Vector databases store embeddings")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, DefaultDimensions)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-6)
}

func TestEmbed_SimilarTextScoresHigher(t *testing.T) {
	s := NewEmbeddingService(256)
	ctx := context.Background()

	query, _ := s.Embed(ctx, "kubernetes cluster deployment")
	related, _ := s.Embed(ctx, "Deploying a Kubernetes cluster in production")
	unrelated, _ := s.Embed(ctx, "chocolate cake recipe with berries")

	assert.Greater(t, cosine(query, related), cosine(query, unrelated))
}

func TestEmbed_EmptyTextIsUnitVector(t *testing.T) {
	v, err := NewEmbeddingService(8).Embed(context.Background(), "  ...  ")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0, 0, 0, 0, 0, 0}, v)
}

func TestEmbedBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEmbeddingService(8).EmbedBatch(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}
