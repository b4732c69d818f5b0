package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/embedding/local"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage/files"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/services"
	"github.com/custodia-labs/sercha-kb/internal/extractors"
	"github.com/custodia-labs/sercha-kb/internal/extractors/extractortest"
	"github.com/custodia-labs/sercha-kb/internal/extractors/pdf"
	"github.com/custodia-labs/sercha-kb/internal/extractors/web"
	"github.com/custodia-labs/sercha-kb/internal/postprocessors"
	"github.com/custodia-labs/sercha-kb/internal/postprocessors/chunker"
)

// pdfBytes passes upload validation; textRunner supplies its text.
var pdfBytes = []byte("%PDF-1.4\n1 0 obj << >> endobj\n%%EOF\n")

var reportText = strings.Repeat("Quarterly revenue grew across every region and the vector search "+
	"project shipped on time. ", 20) + "\f"

const articleURL = "https://example.com/blog/post"

var articlePage = "<html><head><title>Post</title></head><body><article><h1>Release notes</h1>" +
	strings.Repeat("<p>The new release improves ingestion throughput and makes search results more relevant.</p>", 15) +
	"</article></body></html>"

// textRunner stands in for pdftotext.
type textRunner struct {
	mu     sync.Mutex
	output string
}

func (r *textRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return []byte(r.output), nil
}

// testEnv holds the in-memory adapters behind the installed services.
type testEnv struct {
	docs     *memory.DocumentStore
	index    *memory.VectorIndex
	renderer *extractortest.Renderer
	runner   *textRunner
}

// setupTestServices installs real services over in-memory adapters. The
// previous services are restored when the test ends.
func setupTestServices(t *testing.T) *testEnv {
	t.Helper()

	store, err := files.NewStore(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		docs:     memory.NewDocumentStore(),
		index:    memory.NewVectorIndex(),
		renderer: extractortest.New().Page(articleURL, 200, articlePage),
		runner:   &textRunner{output: reportText},
	}
	embedder := local.NewEmbeddingService(64)

	chunkers := postprocessors.NewRegistry()
	chunkers.Register(domain.SourcePDF, chunker.New(chunker.WithChunkSize(800), chunker.WithOverlap(150)))
	chunkers.Register(domain.SourceWeb, chunker.New(chunker.WithChunkSize(1000), chunker.WithOverlap(200)))

	registry := extractors.NewRegistry(
		pdf.NewWithRunner(env.runner),
		web.New(env.renderer),
	)

	origIngest, origSearch, origDocument := ingestService, searchService, documentService
	ingestService = services.NewIngestionService(env.docs, store, registry, chunkers, embedder, env.index)
	searchService = services.NewSearchService(embedder, env.index, memory.NewSearchLogStore())
	documentService = services.NewDocumentService(env.docs, store, env.index, embedder)

	t.Cleanup(func() {
		ingestService, searchService, documentService = origIngest, origSearch, origDocument
	})
	return env
}

// execute runs rootCmd with args and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// resetFlags restores every flag to its default. Cobra keeps flag values
// between executions of the same command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// ingestTestPDF stores a completed document and returns it.
func (e *testEnv) ingestTestPDF(t *testing.T, name string) *domain.Document {
	t.Helper()
	doc, err := ingestService.IngestPDF(context.Background(), name, pdfBytes)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, doc.Status)
	return doc
}
