package services

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// Ensure DocumentService implements the interface.
var _ driving.DocumentService = (*DocumentService)(nil)

// reconcilePageSize is the number of documents read per page by Reconcile.
const reconcilePageSize = 200

// dimensionReporter is implemented by indexes that can report the
// dimension of an existing collection.
type dimensionReporter interface {
	Dimension(ctx context.Context) (int, error)
}

// DocumentService exposes ingested documents read-only.
type DocumentService struct {
	docs     driven.DocumentStore
	files    driven.FileStore
	vectors  driven.VectorIndex
	embedder driven.EmbeddingService

	// opener launches the system viewer. Replaced in tests.
	opener func(target string) error
}

// NewDocumentService creates a new document service.
func NewDocumentService(
	docs driven.DocumentStore,
	files driven.FileStore,
	vectors driven.VectorIndex,
	embedder driven.EmbeddingService,
) *DocumentService {
	return &DocumentService{
		docs:     docs,
		files:    files,
		vectors:  vectors,
		embedder: embedder,
		opener:   openURL,
	}
}

// Get retrieves a document by ID.
func (s *DocumentService) Get(ctx context.Context, id int64) (*domain.Document, error) {
	return s.docs.Get(ctx, id)
}

// List returns documents newest first.
func (s *DocumentService) List(ctx context.Context, opts domain.ListOptions) ([]domain.Document, error) {
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, opts.Status)
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", domain.ErrInvalidInput)
	}
	return s.docs.List(ctx, opts)
}

// OpenPDF opens the stored artifact of a document.
func (s *DocumentService) OpenPDF(ctx context.Context, id int64) (io.ReadCloser, *domain.Document, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.files.Open(doc.FilePath)
	if err != nil {
		return nil, doc, fmt.Errorf("open pdf for document %d: %w", id, err)
	}
	return rc, doc, nil
}

// Stats summarises documents by status.
func (s *DocumentService) Stats(ctx context.Context) (domain.DocumentStats, error) {
	return s.docs.Stats(ctx)
}

// Reconcile compares the chunk count of every completed document with
// the points indexed for it. It reports and never repairs.
func (s *DocumentService) Reconcile(ctx context.Context) (*driving.ReconcileReport, error) {
	report := &driving.ReconcileReport{}
	for offset := 0; ; offset += reconcilePageSize {
		page, err := s.docs.List(ctx, domain.ListOptions{
			Status: domain.StatusCompleted,
			Limit:  reconcilePageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		for i := range page {
			doc := &page[i]
			id := doc.ID
			n, err := s.vectors.Count(ctx, &id)
			if err != nil {
				return nil, fmt.Errorf("count document %d: %w", id, err)
			}
			report.Checked++
			if n != doc.ChunksCount {
				logger.Warn("Document %d has %d chunks recorded but %d points indexed", id, doc.ChunksCount, n)
				report.Mismatches = append(report.Mismatches, driving.CountMismatch{
					DocumentID:  id,
					ChunksCount: doc.ChunksCount,
					IndexPoints: n,
				})
			}
		}
		if len(page) < reconcilePageSize {
			break
		}
	}
	logger.Debug("Reconciled %d documents, %d mismatches", report.Checked, len(report.Mismatches))
	return report, nil
}

// IndexInfo reports the collection size and the active model.
func (s *DocumentService) IndexInfo(ctx context.Context) (*driving.IndexInfo, error) {
	points, err := s.vectors.Count(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count points: %w", err)
	}
	info := &driving.IndexInfo{
		Points:     points,
		Dimensions: s.embedder.Dimensions(),
		Model:      s.embedder.ModelName(),
	}
	if dr, ok := s.vectors.(dimensionReporter); ok {
		dim, err := dr.Dimension(ctx)
		if err != nil {
			return nil, fmt.Errorf("collection dimension: %w", err)
		}
		info.CollectionDimension = dim
	}
	return info, nil
}

// Open opens the document in the default application.
func (s *DocumentService) Open(ctx context.Context, id int64, source bool) error {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return err
	}
	if source {
		if doc.SourceURL == "" {
			return fmt.Errorf("%w: document %d was uploaded and has no source URL", domain.ErrInvalidInput, id)
		}
		return s.opener(doc.SourceURL)
	}
	if !s.files.Exists(doc.FilePath) {
		return fmt.Errorf("pdf for document %d: %w", id, domain.ErrNotFound)
	}
	return s.opener(doc.FilePath)
}

// openURL opens a URL/path using the system default handler.
func openURL(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
