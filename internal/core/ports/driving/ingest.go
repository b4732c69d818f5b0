package driving

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// IngestionService runs the extraction, chunking, embedding and indexing
// pipeline for one document at a time.
//
// When the pipeline fails after a document record exists, the failed
// document is returned together with the error.
type IngestionService interface {
	// IngestPDF stores and indexes an uploaded PDF.
	IngestPDF(ctx context.Context, filename string, data []byte) (*domain.Document, error)

	// IngestURL renders a web page to PDF and indexes its text. Cookies
	// select the authenticated variant for gated profile URLs.
	IngestURL(ctx context.Context, url string, cookies domain.Secret) (*domain.Document, error)

	// Reingest runs the pipeline again for an existing document.
	Reingest(ctx context.Context, id int64, cookies domain.Secret) (*domain.Document, error)
}
