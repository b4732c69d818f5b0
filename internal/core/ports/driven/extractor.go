package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// Extractor converts a source into plain text plus a canonical PDF.
// There is one implementation per domain.SourceKind.
type Extractor interface {
	// Kind returns the variant this extractor handles.
	Kind() domain.SourceKind

	// Extract reads the source. Failures are *domain.ExtractionError;
	// when a PDF was rendered before the failure it is attached to the error.
	Extract(ctx context.Context, src domain.Source) (*domain.Extraction, error)
}

// ExtractorRegistry selects the extractor for a source kind.
type ExtractorRegistry interface {
	// For returns the extractor for kind or domain.ErrInvalidInput.
	For(kind domain.SourceKind) (Extractor, error)

	// Classify picks the URL variant. Invalid URLs are domain.ErrInvalidInput.
	Classify(rawURL string, cookies domain.Secret) (domain.SourceKind, error)

	// FilenameFor derives the original filename recorded for a URL source.
	FilenameFor(rawURL string) string
}

// Renderer loads a page in a headless browser.
type Renderer interface {
	// Render navigates to the URL, applying cookies first, and returns
	// the rendered HTML and a printed PDF.
	Render(ctx context.Context, req RenderRequest) (*RenderedPage, error)

	// Close releases the browser.
	Close() error
}

// RenderRequest describes one navigation.
type RenderRequest struct {
	URL       string
	Cookies   []Cookie
	UserAgent string

	// NavigationTimeout bounds navigation up to the load event. The settle
	// delays, content wait and capture that follow have their own bounds.
	// Zero means the caller's context only.
	NavigationTimeout time.Duration

	// WaitSelector is awaited briefly after load when set. A page where it
	// never appears is still captured.
	WaitSelector string
}

// Cookie is a browser cookie applied before navigation.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// RenderedPage is the result of a render.
type RenderedPage struct {
	// FinalURL is the location after redirects.
	FinalURL string

	// StatusCode is the HTTP status of the main document, 0 if unknown.
	StatusCode int

	HTML string
	PDF  []byte
}

// CommandRunner executes external commands.
// Extractors take one so tests can substitute canned output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}
