package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

func newDoc(name string) *domain.Document {
	return &domain.Document{
		Filename:         "20240101_000000_abcd_" + name,
		OriginalFilename: name,
		FilePath:         "/tmp/uploads/" + name,
		FileSize:         128,
		ContentType:      domain.PDFContentType,
		SourceKind:       domain.SourcePDF,
	}
}

func TestNewDocumentStore(t *testing.T) {
	store := NewDocumentStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.documents)
}

func TestDocumentStore_Create(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	doc := newDoc("a.pdf")
	doc.Status = domain.StatusCompleted
	doc.ChunksCount = 9
	require.NoError(t, store.Create(ctx, doc))

	assert.Equal(t, int64(1), doc.ID)
	assert.Equal(t, domain.StatusPending, doc.Status, "create always starts pending")
	assert.Zero(t, doc.ChunksCount)
	assert.False(t, doc.CreatedAt.IsZero())

	second := newDoc("b.pdf")
	require.NoError(t, store.Create(ctx, second))
	assert.Equal(t, int64(2), second.ID)

	saved, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", saved.OriginalFilename)
}

func TestDocumentStore_Get_NotFound(t *testing.T) {
	_, err := NewDocumentStore().Get(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_Get_ReturnsCopy(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newDoc("a.pdf")))

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	got.Status = domain.StatusCompleted

	again, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, again.Status)
}

func TestDocumentStore_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(s *DocumentStore, id int64)
		act     func(s *DocumentStore, id int64) error
		wantErr error
		want    domain.VectorizationStatus
		chunks  int
	}{
		{
			name:   "pending to completed",
			act:    func(s *DocumentStore, id int64) error { return s.Complete(context.Background(), id, 4) },
			want:   domain.StatusCompleted,
			chunks: 4,
		},
		{
			name: "pending to failed",
			act:  func(s *DocumentStore, id int64) error { return s.Fail(context.Background(), id, "EMPTY_TEXT") },
			want: domain.StatusFailed,
		},
		{
			name:    "completed to failed rejected",
			prepare: func(s *DocumentStore, id int64) { _ = s.Complete(context.Background(), id, 2) },
			act:     func(s *DocumentStore, id int64) error { return s.Fail(context.Background(), id, "late") },
			wantErr: domain.ErrInvalidTransition,
			want:    domain.StatusCompleted,
			chunks:  2,
		},
		{
			name:    "failed to completed rejected",
			prepare: func(s *DocumentStore, id int64) { _ = s.Fail(context.Background(), id, "x") },
			act:     func(s *DocumentStore, id int64) error { return s.Complete(context.Background(), id, 3) },
			wantErr: domain.ErrInvalidTransition,
			want:    domain.StatusFailed,
		},
		{
			name:    "completed with zero chunks rejected",
			act:     func(s *DocumentStore, id int64) error { return s.Complete(context.Background(), id, 0) },
			wantErr: domain.ErrInvalidInput,
			want:    domain.StatusPending,
		},
		{
			name:    "reset pending rejected",
			act:     func(s *DocumentStore, id int64) error { return s.ResetForReingest(context.Background(), id) },
			wantErr: domain.ErrInvalidTransition,
			want:    domain.StatusPending,
		},
		{
			name:    "reset completed",
			prepare: func(s *DocumentStore, id int64) { _ = s.Complete(context.Background(), id, 5) },
			act:     func(s *DocumentStore, id int64) error { return s.ResetForReingest(context.Background(), id) },
			want:    domain.StatusPending,
		},
		{
			name:    "missing document",
			act:     func(s *DocumentStore, _ int64) error { return s.Fail(context.Background(), 404, "x") },
			wantErr: domain.ErrNotFound,
			want:    domain.StatusPending,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := NewDocumentStore()
			doc := newDoc("a.pdf")
			require.NoError(t, store.Create(context.Background(), doc))
			if tc.prepare != nil {
				tc.prepare(store, doc.ID)
			}

			err := tc.act(store, doc.ID)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}

			got, err := store.Get(context.Background(), doc.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Status)
			assert.Equal(t, tc.chunks, got.ChunksCount)
		})
	}
}

func TestDocumentStore_FailRecordsReason(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	doc := newDoc("a.pdf")
	require.NoError(t, store.Create(ctx, doc))
	require.NoError(t, store.Fail(ctx, doc.ID, "AUTH_EXPIRED"))

	got, err := store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "AUTH_EXPIRED", got.StatusError)
	assert.Zero(t, got.ChunksCount)

	require.NoError(t, store.ResetForReingest(ctx, doc.ID))
	got, err = store.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, got.StatusError)
}

func TestDocumentStore_List(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		doc := newDoc("doc.pdf")
		doc.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Create(ctx, doc))
	}
	require.NoError(t, store.Complete(ctx, 2, 1))
	require.NoError(t, store.Complete(ctx, 4, 1))

	all, err := store.List(ctx, domain.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, int64(5), all[0].ID, "newest first")

	completed, err := store.List(ctx, domain.ListOptions{Status: domain.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 2)
	assert.Equal(t, int64(4), completed[0].ID)

	page, err := store.List(ctx, domain.ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(4), page[0].ID)
	assert.Equal(t, int64(3), page[1].ID)

	empty, err := store.List(ctx, domain.ListOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDocumentStore_Stats(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, store.Create(ctx, newDoc("doc.pdf")))
	}
	require.NoError(t, store.Complete(ctx, 1, 3))
	require.NoError(t, store.Complete(ctx, 2, 4))
	require.NoError(t, store.Fail(ctx, 3, "x"))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStats{Total: 4, Pending: 1, Completed: 2, Failed: 1, Chunks: 7}, stats)
}

func TestDocumentStore_ConcurrentTransitions(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	doc := newDoc("a.pdf")
	require.NoError(t, store.Create(ctx, doc))

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				results <- store.Complete(ctx, doc.ID, 3)
			} else {
				results <- store.Fail(ctx, doc.ID, "x")
			}
		}(i)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one terminal transition wins")
}
