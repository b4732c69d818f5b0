// Package memory provides in-memory adapters for tests and for running
// without external services.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[int64]domain.Document
	nextID    int64
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[int64]domain.Document),
		nextID:    1,
	}
}

// Create inserts a pending document and assigns its ID.
func (s *DocumentStore) Create(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc.ID = s.nextID
	s.nextID++
	doc.Status = domain.StatusPending
	doc.StatusError = ""
	doc.ChunksCount = 0
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	s.documents[doc.ID] = *doc
	return nil
}

// Get retrieves a document by ID.
func (s *DocumentStore) Get(_ context.Context, id int64) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// List returns documents newest first.
func (s *DocumentStore) List(_ context.Context, opts domain.ListOptions) ([]domain.Document, error) {
	s.mu.RLock()
	result := make([]domain.Document, 0, len(s.documents))
	for _, doc := range s.documents {
		if opts.Status != "" && doc.Status != opts.Status {
			continue
		}
		result = append(result, doc)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return []domain.Document{}, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

// Complete moves a pending document to completed.
func (s *DocumentStore) Complete(_ context.Context, id int64, chunksCount int) error {
	if chunksCount <= 0 {
		return fmt.Errorf("%w: completed document needs chunks, got %d", domain.ErrInvalidInput, chunksCount)
	}
	return s.transition(id, domain.StatusCompleted, func(d *domain.Document) {
		d.ChunksCount = chunksCount
		d.StatusError = ""
	})
}

// Fail moves a pending document to failed.
func (s *DocumentStore) Fail(_ context.Context, id int64, reason string) error {
	return s.transition(id, domain.StatusFailed, func(d *domain.Document) {
		d.ChunksCount = 0
		d.StatusError = reason
	})
}

func (s *DocumentStore) transition(id int64, to domain.VectorizationStatus, apply func(*domain.Document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !doc.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s for document %d", domain.ErrInvalidTransition, doc.Status, to, id)
	}
	doc.Status = to
	apply(&doc)
	s.documents[id] = doc
	return nil
}

// ResetForReingest returns a terminal document to pending.
func (s *DocumentStore) ResetForReingest(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !doc.Status.Terminal() {
		return fmt.Errorf("%w: document %d is %s", domain.ErrInvalidTransition, id, doc.Status)
	}
	doc.Status = domain.StatusPending
	doc.StatusError = ""
	doc.ChunksCount = 0
	s.documents[id] = doc
	return nil
}

// Stats counts documents per status.
func (s *DocumentStore) Stats(_ context.Context) (domain.DocumentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats domain.DocumentStats
	for _, doc := range s.documents {
		stats.Total++
		stats.Chunks += doc.ChunksCount
		switch doc.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}
