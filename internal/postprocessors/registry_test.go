package postprocessors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/postprocessors/chunker"
)

func TestRegistry_FallbackIsDefaultChunker(t *testing.T) {
	r := NewRegistry()
	c, ok := r.For(domain.SourceWeb).(*chunker.Chunker)
	require.True(t, ok)
	assert.Equal(t, chunker.DefaultChunkSize, c.ChunkSize())
	assert.False(t, r.Has(domain.SourceWeb))
}

func TestRegistry_RegisterFromConfig(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterFromConfig(domain.SourcePDF, map[string]any{
		"size":    int64(800),
		"overlap": float64(150),
	}))

	c, ok := r.For(domain.SourcePDF).(*chunker.Chunker)
	require.True(t, ok)
	assert.Equal(t, 800, c.ChunkSize())
	assert.Equal(t, 150, c.Overlap())
	assert.True(t, r.Has(domain.SourcePDF))
}

func TestBuildChunker_Invalid(t *testing.T) {
	_, err := BuildChunker(map[string]any{"size": 100, "overlap": 100})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetIntFromConfig(t *testing.T) {
	tests := []struct {
		name   string
		val    any
		want   int
		wantOK bool
	}{
		{"int", 5, 5, true},
		{"int64", int64(6), 6, true},
		{"float64", float64(7), 7, true},
		{"string", "8", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := getIntFromConfig(map[string]any{"k": tc.val}, "k")
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantOK, ok)
		})
	}
}
