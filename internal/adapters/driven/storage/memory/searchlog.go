package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// Ensure SearchLogStore implements the interface.
var _ driven.SearchLogStore = (*SearchLogStore)(nil)

// SearchLogStore keeps search log entries in memory.
type SearchLogStore struct {
	mu      sync.Mutex
	entries []domain.SearchLogEntry
}

// NewSearchLogStore creates an empty log.
func NewSearchLogStore() *SearchLogStore {
	return &SearchLogStore{}
}

// Record appends an entry.
func (s *SearchLogStore) Record(_ context.Context, entry domain.SearchLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = int64(len(s.entries) + 1)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Recent returns the latest n entries, newest first.
func (s *SearchLogStore) Recent(_ context.Context, n int) ([]domain.SearchLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]domain.SearchLogEntry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}
