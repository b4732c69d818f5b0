package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/embedding/local"
	filestore "github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage/files"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/extractors"
	"github.com/custodia-labs/sercha-kb/internal/extractors/extractortest"
	"github.com/custodia-labs/sercha-kb/internal/extractors/pdf"
	"github.com/custodia-labs/sercha-kb/internal/extractors/profile"
	"github.com/custodia-labs/sercha-kb/internal/extractors/web"
	"github.com/custodia-labs/sercha-kb/internal/postprocessors"
	"github.com/custodia-labs/sercha-kb/internal/postprocessors/chunker"
)

// --- Mock implementations ---

// textRunner stands in for pdftotext and returns the configured output.
type textRunner struct {
	mu     sync.Mutex
	output string
}

func (r *textRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return []byte(r.output), nil
}

func (r *textRunner) set(output string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.output = output
}

// countingEmbedder wraps the local model, counting calls and optionally failing.
type countingEmbedder struct {
	*local.EmbeddingService
	embedCalls atomic.Int32
	batchCalls atomic.Int32
	failBatch  atomic.Bool
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.embedCalls.Add(1)
	return e.EmbeddingService.Embed(ctx, text)
}

func (e *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.batchCalls.Add(1)
	if e.failBatch.Load() {
		return nil, errors.Join(domain.ErrEmbedding, errors.New("model crashed"))
	}
	return e.EmbeddingService.EmbedBatch(ctx, texts)
}

// failingLogStore rejects every record.
type failingLogStore struct{}

func (failingLogStore) Record(context.Context, domain.SearchLogEntry) error {
	return errors.New("disk full")
}

func (failingLogStore) Recent(context.Context, int) ([]domain.SearchLogEntry, error) {
	return nil, nil
}

// --- Fixture ---

const testDimensions = 64

type fixture struct {
	docs      *memory.DocumentStore
	files     *filestore.Store
	index     *memory.VectorIndex
	searches  *memory.SearchLogStore
	renderer  *extractortest.Renderer
	runner    *textRunner
	embedder  *countingEmbedder
	chunkers  *postprocessors.Registry
	ingest    *IngestionService
	search    *SearchService
	documents *DocumentService
}

func newFixture(t *testing.T, opts ...IngestOption) *fixture {
	t.Helper()

	store, err := filestore.NewStore(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		docs:     memory.NewDocumentStore(),
		files:    store,
		index:    memory.NewVectorIndex(),
		searches: memory.NewSearchLogStore(),
		renderer: extractortest.New(),
		runner:   &textRunner{output: reportText},
		embedder: &countingEmbedder{EmbeddingService: local.NewEmbeddingService(testDimensions)},
		chunkers: postprocessors.NewRegistry(),
	}
	f.chunkers.Register(domain.SourcePDF, chunker.New(chunker.WithChunkSize(800), chunker.WithOverlap(150)))
	f.chunkers.Register(domain.SourceWeb, chunker.New(chunker.WithChunkSize(1000), chunker.WithOverlap(200)))
	f.chunkers.Register(domain.SourceProfile, chunker.New(chunker.WithChunkSize(1000), chunker.WithOverlap(200)))

	registry := extractors.NewRegistry(
		pdf.NewWithRunner(f.runner),
		web.New(f.renderer),
		profile.New(f.renderer),
	)
	f.ingest = NewIngestionService(f.docs, f.files, registry, f.chunkers, f.embedder, f.index, opts...)
	f.search = NewSearchService(f.embedder, f.index, f.searches)
	f.documents = NewDocumentService(f.docs, f.files, f.index, f.embedder)
	return f
}

// pdfBytes is an upload that passes validation.
var pdfBytes = []byte("%PDF-1.4\n1 0 obj << >> endobj\n%%EOF\n")

// reportText is pdftotext output for a two page report.
var reportText = strings.Repeat("Quarterly revenue grew across every region. The vector search "+
	"project shipped on time and reduced support tickets. ", 12) +
	"\f" + strings.Repeat("Hiring plans for next year focus on infrastructure and data "+
	"engineering teams in Berlin and Lisbon. ", 10) + "\f"

const articleURL = "https://example.com/blog/post"

var articlePage = "<html><head><title>Post</title></head><body><nav>Home About</nav><article><h1>Release notes</h1>" +
	strings.Repeat("<p>The new release improves ingestion throughput and makes search results more relevant.</p>", 15) +
	"</article><footer>Copyright</footer></body></html>"

const profileURL = "https://www.linkedin.com/in/jane-doe/"

const profilePage = `<html><head><title>Jane Doe | LinkedIn</title></head><body>
<main>
  <section class="pv-top-card">
    <div class="pv-text-details__left-panel">
      <h1 class="text-heading-xlarge">Jane Doe</h1>
      <div class="text-body-medium break-words">Staff Engineer at Example Corp</div>
    </div>
  </section>
  <section class="pv-about-section"><div class="pv-shared-text-with-see-more">Builds search systems and data pipelines for large teams.</div></section>
  <section class="pv-experience-section">
    <div class="pv-entity__summary-info">Staff Engineer, Example Corp</div>
    <div class="pv-entity__summary-info">Engineer, Other Inc</div>
  </section>
  <section class="pv-education-section">
    <div class="pv-entity__summary-info">MSc Computer Science</div>
  </section>
</main></body></html>`
