package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// DocumentService exposes ingested documents to external actors.
// It never changes a document's status.
type DocumentService interface {
	// Get retrieves a document by ID.
	Get(ctx context.Context, id int64) (*domain.Document, error)

	// List returns documents newest first.
	List(ctx context.Context, opts domain.ListOptions) ([]domain.Document, error)

	// OpenPDF opens the stored PDF artifact. Failed documents keep theirs.
	OpenPDF(ctx context.Context, id int64) (io.ReadCloser, *domain.Document, error)

	// Stats summarises documents by status.
	Stats(ctx context.Context) (domain.DocumentStats, error)

	// Reconcile compares every completed document's chunk count with the
	// number of points indexed for it.
	Reconcile(ctx context.Context) (*ReconcileReport, error)

	// IndexInfo reports the collection point count and the active model.
	IndexInfo(ctx context.Context) (*IndexInfo, error)

	// Open shows the stored PDF, or the source page when source is set,
	// in the system's default application.
	Open(ctx context.Context, id int64, source bool) error
}

// ReconcileReport is the outcome of Reconcile.
type ReconcileReport struct {
	// Checked is the number of completed documents examined.
	Checked int

	// Mismatches lists documents whose counts disagree.
	Mismatches []CountMismatch
}

// CountMismatch describes one inconsistent document.
type CountMismatch struct {
	DocumentID  int64
	ChunksCount int
	IndexPoints int
}

// IndexInfo describes the vector collection.
type IndexInfo struct {
	Points int

	// Dimensions is the active model's vector size.
	Dimensions int

	// CollectionDimension is the size the collection was created with,
	// 0 when the collection does not exist or the index cannot tell.
	CollectionDimension int

	Model string
}
