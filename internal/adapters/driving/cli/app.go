package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/browser/rod"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/config"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/embedding"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage/files"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/core/services"
	"github.com/custodia-labs/sercha-kb/internal/extractors"
	"github.com/custodia-labs/sercha-kb/internal/extractors/pdf"
	"github.com/custodia-labs/sercha-kb/internal/extractors/profile"
	"github.com/custodia-labs/sercha-kb/internal/extractors/web"
	"github.com/custodia-labs/sercha-kb/internal/logger"
	"github.com/custodia-labs/sercha-kb/internal/postprocessors"
	"github.com/custodia-labs/sercha-kb/internal/telemetry"
)

// application owns every adapter built from configuration.
type application struct {
	cfg       *config.Config
	ingest    *services.IngestionService
	search    *services.SearchService
	documents *services.DocumentService

	closers []func() error
}

// vectorIndex is a VectorIndex that holds a connection.
type vectorIndex interface {
	driven.VectorIndex
	Close() error
}

func newApplication(ctx context.Context, cfg *config.Config, buildVersion string) (a *application, err error) {
	a = &application{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceVersion: buildVersion,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.onClose(func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tp.Shutdown(shutdownCtx)
	})

	// 1. Metadata
	var docs driven.DocumentStore
	var searches driven.SearchLogStore
	switch cfg.Storage.Backend {
	case "memory":
		docs = memory.NewDocumentStore()
		searches = memory.NewSearchLogStore()
	default:
		store, err := sqlite.NewStore(cfg.DataDir())
		if err != nil {
			return nil, fmt.Errorf("metadata store: %w", err)
		}
		a.onClose(store.Close)
		docs = store.DocumentStore()
		searches = store.SearchLogStore()
		logger.Debug("Metadata store: %s", store.Path())
	}

	fileStore, err := files.NewStore(cfg.UploadsDir())
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}

	// 2. Vector index
	var vectors vectorIndex
	switch cfg.Vector.Backend {
	case "memory":
		vectors = memory.NewVectorIndex()
	default:
		vectors, err = qdrant.New(qdrant.Config{
			Host:       cfg.Vector.Host,
			Port:       cfg.Vector.Port,
			Collection: cfg.Vector.Collection,
			Timeout:    cfg.Vector.Timeout,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("Vector index: %s:%d/%s", cfg.Vector.Host, cfg.Vector.Port, cfg.Vector.Collection)
	}
	a.onClose(vectors.Close)

	// 3. Embeddings
	factory, err := embedding.NewFactory(embedding.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		BatchSize:  cfg.Embedding.BatchSize,
		RateLimit:  cfg.Embedding.RateLimit,
		Timeout:    cfg.Embedding.Timeout,
	})
	if err != nil {
		return nil, err
	}
	embedder := embedding.NewShared(factory, embedding.WithBatchSize(cfg.Embedding.BatchSize))
	a.onClose(embedder.Close)

	// 4. Extraction and chunking
	renderer := rod.New(rod.Config{
		Bin:       cfg.Extract.BrowserBin,
		NoSandbox: os.Geteuid() == 0,
	})
	a.onClose(renderer.Close)

	if err := pdf.CheckAvailable(); err != nil {
		logger.Warn("%v: %s", err, pdf.InstallInstructions())
	}
	retry := []extractors.RetryOption{
		extractors.WithAttempts(cfg.Extract.Attempts),
		extractors.WithBackoff(cfg.Extract.Backoff),
	}
	registry := extractors.NewRegistry(
		pdf.New(),
		extractors.WithRetry(web.New(renderer, web.WithTimeout(cfg.Extract.WebTimeout)), retry...),
		extractors.WithRetry(profile.New(renderer, profile.WithTimeout(cfg.Extract.ProfileTimeout)), retry...),
	)

	chunkers, err := newChunkerRegistry(cfg.Chunking)
	if err != nil {
		return nil, err
	}

	// 5. Services
	a.ingest = services.NewIngestionService(docs, fileStore, registry, chunkers, embedder, vectors,
		services.WithMinTextLength(cfg.Extract.MinTextLength),
	)
	a.search = services.NewSearchService(embedder, vectors, searches)
	a.documents = services.NewDocumentService(docs, fileStore, vectors, embedder)

	return a, nil
}

// newChunkerRegistry registers the PDF settings for uploads and the web
// settings for rendered pages.
func newChunkerRegistry(cfg config.ChunkingConfig) (*postprocessors.Registry, error) {
	r := postprocessors.NewRegistry()
	pdfSettings := map[string]any{"size": cfg.PDF.Size, "overlap": cfg.PDF.Overlap}
	webSettings := map[string]any{"size": cfg.Web.Size, "overlap": cfg.Web.Overlap}

	if err := r.RegisterFromConfig(domain.SourcePDF, pdfSettings); err != nil {
		return nil, err
	}
	for _, kind := range []domain.SourceKind{domain.SourceWeb, domain.SourceProfile} {
		if err := r.RegisterFromConfig(kind, webSettings); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (a *application) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases adapters in reverse order of creation.
func (a *application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
