package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

func TestSearchLogStore(t *testing.T) {
	store := NewSearchLogStore()
	ctx := context.Background()

	for _, q := range []string{"first", "second", "third"} {
		require.NoError(t, store.Record(ctx, domain.SearchLogEntry{Query: q, Limit: 5}))
	}

	recent, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Query)
	assert.Equal(t, "second", recent[1].Query)
	assert.Equal(t, int64(3), recent[0].ID)
	assert.False(t, recent[0].CreatedAt.IsZero())

	all, err := store.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
