package driven

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// DocumentStore persists document records.
// Backed by SQLite for metadata storage.
//
// Status changes are only possible through Complete, Fail and
// ResetForReingest, and stores must enforce the state machine.
type DocumentStore interface {
	// Create inserts a pending record and assigns its ID.
	Create(ctx context.Context, doc *domain.Document) error

	// Get retrieves a document by ID.
	Get(ctx context.Context, id int64) (*domain.Document, error)

	// List returns documents newest first.
	List(ctx context.Context, opts domain.ListOptions) ([]domain.Document, error)

	// Complete moves a pending document to completed with its chunk count.
	Complete(ctx context.Context, id int64, chunksCount int) error

	// Fail moves a pending document to failed with a reason.
	// The chunk count is forced to 0.
	Fail(ctx context.Context, id int64, reason string) error

	// ResetForReingest returns a terminal document to pending with a zero
	// count. It is the only way back to pending and is used for explicit
	// re-ingestion.
	ResetForReingest(ctx context.Context, id int64) error

	// Stats counts documents per status.
	Stats(ctx context.Context) (domain.DocumentStats, error)
}

// SearchLogStore records executed searches.
type SearchLogStore interface {
	// Record stores an entry.
	Record(ctx context.Context, entry domain.SearchLogEntry) error

	// Recent returns the latest n entries, newest first.
	Recent(ctx context.Context, n int) ([]domain.SearchLogEntry, error)
}
