package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-kb/internal/logger"
	"github.com/custodia-labs/sercha-kb/internal/telemetry"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// DefaultMinTextLength is the shortest extracted text worth indexing.
const DefaultMinTextLength = 100

// cleanupTimeout bounds the status and index writes made after a failure.
// They run detached from the caller's context so a cancelled request
// still leaves a consistent record.
const cleanupTimeout = 30 * time.Second

var pdfMagic = []byte("%PDF")

// IngestionService runs extract, chunk, embed and index for one document
// at a time and owns every vectorization status change.
type IngestionService struct {
	docs       driven.DocumentStore
	files      driven.FileStore
	extractors driven.ExtractorRegistry
	chunkers   driven.ChunkerRegistry
	embedder   driven.EmbeddingService
	vectors    driven.VectorIndex

	locks         *KeyedMutex
	minTextLength int
	now           func() time.Time
}

// IngestOption configures the ingestion service.
type IngestOption func(*IngestionService)

// WithMinTextLength sets the minimum extracted text length in characters.
func WithMinTextLength(n int) IngestOption {
	return func(s *IngestionService) {
		if n < 0 {
			n = 0
		}
		s.minTextLength = n
	}
}

// WithClock overrides the time source used for stored filenames.
func WithClock(now func() time.Time) IngestOption {
	return func(s *IngestionService) {
		s.now = now
	}
}

// WithLocks shares a keyed mutex with other services.
func WithLocks(locks *KeyedMutex) IngestOption {
	return func(s *IngestionService) {
		s.locks = locks
	}
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(
	docs driven.DocumentStore,
	files driven.FileStore,
	extractors driven.ExtractorRegistry,
	chunkers driven.ChunkerRegistry,
	embedder driven.EmbeddingService,
	vectors driven.VectorIndex,
	opts ...IngestOption,
) *IngestionService {
	s := &IngestionService{
		docs:          docs,
		files:         files,
		extractors:    extractors,
		chunkers:      chunkers,
		embedder:      embedder,
		vectors:       vectors,
		locks:         NewKeyedMutex(),
		minTextLength: DefaultMinTextLength,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestPDF stores an uploaded PDF, records it as pending and indexes it.
func (s *IngestionService) IngestPDF(ctx context.Context, filename string, data []byte) (*domain.Document, error) {
	if err := ValidatePDF(filename, data); err != nil {
		return nil, err
	}
	logger.Section("Ingest PDF")

	stored := StoredFilename(filename, s.now())
	path, err := s.files.Save(ctx, stored, data)
	if err != nil {
		return nil, fmt.Errorf("save pdf: %w", err)
	}

	doc := &domain.Document{
		Filename:         stored,
		OriginalFilename: filepath.Base(filename),
		FilePath:         path,
		FileSize:         int64(len(data)),
		ContentType:      domain.PDFContentType,
		SourceKind:       domain.SourcePDF,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	logger.Debug("Created document %d for %q", doc.ID, doc.OriginalFilename)

	unlock, err := s.locks.Lock(ctx, docKey(doc.ID))
	if err != nil {
		return s.fail(ctx, doc.ID, err, false)
	}
	defer unlock()

	ext, err := s.extract(ctx, doc.ID, domain.Source{Kind: domain.SourcePDF, Path: path})
	if err != nil {
		return s.fail(ctx, doc.ID, err, false)
	}
	return s.process(ctx, doc, ext.Text, false)
}

// IngestURL renders a page, stores its PDF and indexes its text. A
// failure before any PDF was rendered creates no document.
func (s *IngestionService) IngestURL(ctx context.Context, rawURL string, cookies domain.Secret) (*domain.Document, error) {
	rawURL = strings.TrimSpace(rawURL)
	kind, err := s.extractors.Classify(rawURL, cookies)
	if err != nil {
		return nil, err
	}
	logger.Section("Ingest URL")
	logger.Debug("Source %s classified as %s", rawURL, kind)

	unlockURL, err := s.locks.Lock(ctx, "url:"+rawURL)
	if err != nil {
		return nil, err
	}
	defer unlockURL()

	ext, extErr := s.extract(ctx, 0, domain.Source{Kind: kind, URL: rawURL, Cookies: cookies})
	artifact := artifactOf(ext, extErr)
	if len(artifact) == 0 {
		if extErr == nil {
			extErr = domain.NewExtractionError(domain.ReasonHTTPError, rawURL, errors.New("no PDF was rendered"))
		}
		return nil, extErr
	}

	original := s.extractors.FilenameFor(rawURL)
	stored := StoredFilename(original, s.now())
	path, err := s.files.Save(ctx, stored, artifact)
	if err != nil {
		return nil, fmt.Errorf("save pdf: %w", err)
	}

	doc := &domain.Document{
		Filename:         stored,
		OriginalFilename: original,
		FilePath:         path,
		FileSize:         int64(len(artifact)),
		ContentType:      domain.PDFContentType,
		SourceKind:       kind,
		SourceURL:        rawURL,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	logger.Debug("Created document %d for %s", doc.ID, rawURL)

	unlock, err := s.locks.Lock(ctx, docKey(doc.ID))
	if err != nil {
		return s.fail(ctx, doc.ID, err, false)
	}
	defer unlock()

	if extErr != nil {
		return s.fail(ctx, doc.ID, extErr, false)
	}
	return s.process(ctx, doc, ext.Text, false)
}

// Reingest runs the pipeline again for a terminal document. Uploads are
// re-extracted from the stored PDF and URL sources are fetched again,
// replacing the stored PDF when a new one was rendered.
func (s *IngestionService) Reingest(ctx context.Context, id int64, cookies domain.Secret) (*domain.Document, error) {
	unlock, err := s.locks.Lock(ctx, docKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.docs.ResetForReingest(ctx, id); err != nil {
		return nil, err
	}
	logger.Section("Reingest")
	logger.Debug("Reingesting document %d (%s)", id, doc.SourceKind)

	// Points from the previous run may still be indexed, so every failure
	// from here on removes them.
	src := domain.Source{Kind: domain.SourcePDF, Path: doc.FilePath}
	if doc.SourceKind != domain.SourcePDF {
		kind, err := s.extractors.Classify(doc.SourceURL, cookies)
		if err != nil {
			return s.fail(ctx, id, err, true)
		}
		src = domain.Source{Kind: kind, URL: doc.SourceURL, Cookies: cookies}
	}

	ext, err := s.extract(ctx, id, src)
	if doc.SourceKind != domain.SourcePDF {
		if artifact := artifactOf(ext, err); len(artifact) > 0 {
			if _, serr := s.files.Save(ctx, doc.Filename, artifact); serr != nil {
				logger.Warn("Failed to replace PDF for document %d: %v", id, serr)
			}
		}
	}
	if err != nil {
		return s.fail(ctx, id, err, true)
	}
	return s.process(ctx, doc, ext.Text, true)
}

// process runs the stages after extraction. dirty marks that points for
// the document may already be indexed.
func (s *IngestionService) process(ctx context.Context, doc *domain.Document, text string, dirty bool) (*domain.Document, error) {
	id := doc.ID

	if n := domain.ContentLength(text); n < s.minTextLength {
		err := domain.NewExtractionError(domain.ReasonEmptyText, doc.SourceURL,
			fmt.Errorf("extracted %d characters, need at least %d", n, s.minTextLength))
		return s.fail(ctx, id, err, dirty)
	}

	chunks, err := s.chunk(ctx, doc, text)
	if err != nil {
		return s.fail(ctx, id, err, dirty)
	}

	vectors, err := s.embed(ctx, id, chunks)
	if err != nil {
		return s.fail(ctx, id, err, dirty)
	}

	written, err := s.store(ctx, doc, chunks, vectors)
	if err != nil {
		return s.fail(ctx, id, err, dirty || written)
	}

	if err := s.docs.Complete(ctx, id, len(chunks)); err != nil {
		return s.fail(ctx, id, fmt.Errorf("complete document: %w", err), true)
	}
	logger.Debug("Document %d completed with %d chunks", id, len(chunks))
	return s.docs.Get(ctx, id)
}

func (s *IngestionService) extract(ctx context.Context, id int64, src domain.Source) (ext *domain.Extraction, err error) {
	ctx, span := telemetry.StartIngestSpan(ctx, telemetry.StageExtract, id)
	defer func() { telemetry.End(span, err) }()

	extractor, err := s.extractors.For(src.Kind)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	ext, err = extractor.Extract(ctx, src)
	if err != nil {
		logger.Debug("Extraction (%s) failed after %s: %v", src.Kind, time.Since(start), err)
		return ext, err
	}
	logger.Debug("Extracted %d characters (%s) in %s", utf8.RuneCountInString(ext.Text), src.Kind, time.Since(start))
	return ext, nil
}

func (s *IngestionService) chunk(ctx context.Context, doc *domain.Document, text string) (chunks []domain.Chunk, err error) {
	_, span := telemetry.StartIngestSpan(ctx, telemetry.StageChunk, doc.ID)
	defer func() { telemetry.End(span, err) }()

	chunks, err = s.chunkers.For(doc.SourceKind).Chunk(doc.ID, text)
	if err == nil && len(chunks) == 0 {
		err = &domain.ChunkingError{Reason: domain.ReasonEmptyInput}
	}
	if err != nil {
		if errors.Is(err, domain.ErrChunking) {
			return nil, domain.NewExtractionError(domain.ReasonEmptyText, doc.SourceURL, err)
		}
		return nil, fmt.Errorf("chunk: %w", err)
	}
	logger.Debug("Document %d split into %d chunks", doc.ID, len(chunks))
	return chunks, nil
}

func (s *IngestionService) embed(ctx context.Context, id int64, chunks []domain.Chunk) (vectors [][]float32, err error) {
	ctx, span := telemetry.StartIngestSpan(ctx, telemetry.StageEmbed, id)
	defer func() { telemetry.End(span, err) }()

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	start := time.Now()
	vectors, err = s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed: %w: got %d vectors for %d chunks", domain.ErrEmbedding, len(vectors), len(chunks))
	}
	logger.Debug("Embedded %d chunks with %s in %s", len(chunks), s.embedder.ModelName(), time.Since(start))
	return vectors, nil
}

// store writes the points, drops stale tails and reconciles the count.
// written reports whether the upsert was attempted.
func (s *IngestionService) store(
	ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32,
) (written bool, err error) {
	ctx, span := telemetry.StartIngestSpan(ctx, telemetry.StageIndex, doc.ID)
	defer func() { telemetry.End(span, err) }()

	if err := s.vectors.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return false, fmt.Errorf("ensure collection: %w", err)
	}

	points := make([]domain.Point, len(chunks))
	for i, c := range chunks {
		points[i] = domain.Point{
			ID:     PointID(doc.ID, c.Index),
			Vector: vectors[i],
			Payload: domain.ChunkPayload{
				DocumentID: doc.ID,
				ChunkIndex: c.Index,
				Filename:   doc.Filename,
				Text:       c.Text,
				SourceURL:  doc.SourceURL,
				CreatedAt:  doc.CreatedAt,
			},
		}
	}

	if err := s.vectors.Upsert(ctx, points); err != nil {
		return true, fmt.Errorf("upsert: %w", err)
	}
	if err := s.vectors.DeleteDocument(ctx, doc.ID, len(chunks)); err != nil {
		return true, fmt.Errorf("delete stale chunks: %w", err)
	}

	id := doc.ID
	count, err := s.vectors.Count(ctx, &id)
	if err != nil {
		return true, fmt.Errorf("count: %w", err)
	}
	if count != len(chunks) {
		return true, fmt.Errorf("%w: document %d has %d points, expected %d",
			domain.ErrCountMismatch, doc.ID, count, len(chunks))
	}
	logger.Debug("Indexed %d points for document %d", count, doc.ID)
	return true, nil
}

// fail records cause on the document and returns the failed record with
// cause. When cleanup is set every indexed point of the document is
// removed first.
func (s *IngestionService) fail(ctx context.Context, id int64, cause error, cleanup bool) (*domain.Document, error) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if cleanup {
		if err := s.vectors.DeleteDocument(bg, id, 0); err != nil {
			logger.Warn("Failed to remove points of document %d: %v", id, err)
		}
	}
	if err := s.docs.Fail(bg, id, FailureReason(cause)); err != nil {
		logger.Warn("Failed to mark document %d failed: %v", id, err)
	}
	logger.Debug("Document %d failed: %v", id, cause)

	doc, err := s.docs.Get(bg, id)
	if err != nil {
		return nil, cause
	}
	return doc, cause
}

// ValidatePDF checks an upload's name and content before anything is stored.
func ValidatePDF(filename string, data []byte) error {
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return fmt.Errorf("%w: only .pdf files are accepted, got %q", domain.ErrInvalidInput, filepath.Base(filename))
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return fmt.Errorf("%w: file is not a PDF", domain.ErrInvalidInput)
	}
	return nil
}

// FailureReason formats the status error recorded for a failed document
// as "<CODE>: <message>".
func FailureReason(err error) string {
	code := "INTERNAL"
	var ee *domain.ExtractionError
	switch {
	case errors.As(err, &ee):
		code = string(ee.Reason)
	case errors.Is(err, domain.ErrSchemaMismatch):
		code = "SCHEMA_MISMATCH"
	case errors.Is(err, domain.ErrCountMismatch):
		code = "COUNT_MISMATCH"
	case errors.Is(err, domain.ErrIndexUnavailable):
		code = "INDEX_UNAVAILABLE"
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		code = "EMBEDDING_UNAVAILABLE"
	case errors.Is(err, domain.ErrEmbedding):
		code = "EMBEDDING_FAILED"
	case errors.Is(err, domain.ErrInvalidInput):
		code = "INVALID_INPUT"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = "CANCELLED"
	}
	return code + ": " + err.Error()
}

// artifactOf returns the PDF from a successful extraction or from the
// extraction error.
func artifactOf(ext *domain.Extraction, err error) []byte {
	if err == nil {
		if ext == nil {
			return nil
		}
		return ext.PDF
	}
	var ee *domain.ExtractionError
	if errors.As(err, &ee) {
		return ee.PDF
	}
	return nil
}

func docKey(id int64) string {
	return "doc:" + strconv.FormatInt(id, 10)
}
