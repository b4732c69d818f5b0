// Package web extracts readable text from arbitrary web pages rendered
// in a headless browser.
package web

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/extractors"
)

// DefaultTimeout bounds navigation to the load event.
const DefaultTimeout = 60 * time.Second

// MinContentLength is the text length a content selector must reach to
// be preferred over the page body.
const MinContentLength = 100

// waitSelector is awaited briefly after load.
const waitSelector = "main, article, .content, #content"

// ContentSelectors are tried in order before falling back to the body.
var ContentSelectors = []string{
	"article",
	`[data-testid="storyContent"]`,
	"main",
	".content",
	"#content",
	".post-content",
	".entry-content",
	".article-content",
	".story-content",
	".news-content",
	".blog-content",
	".page-content",
}

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor renders a page, keeps its PDF and extracts the main content.
type Extractor struct {
	renderer driven.Renderer
	timeout  time.Duration
}

// Option configures the extractor.
type Option func(*Extractor)

// WithTimeout overrides the navigation timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New creates a web extractor on top of a renderer.
func New(renderer driven.Renderer, opts ...Option) *Extractor {
	e := &Extractor{renderer: renderer, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Kind returns domain.SourceWeb.
func (e *Extractor) Kind() domain.SourceKind {
	return domain.SourceWeb
}

// Extract renders src.URL. Redirects are followed by the browser; an
// error status is HTTP_ERROR and a missed deadline FETCH_TIMEOUT.
func (e *Extractor) Extract(ctx context.Context, src domain.Source) (*domain.Extraction, error) {
	if _, err := extractors.ParseURL(src.URL); err != nil {
		return nil, err
	}

	page, err := e.renderer.Render(ctx, driven.RenderRequest{
		URL:               src.URL,
		UserAgent:         extractors.UserAgent,
		NavigationTimeout: e.timeout,
		WaitSelector:      waitSelector,
	})
	if err != nil {
		return nil, extractors.RenderError(src.URL, err)
	}
	if ee := extractors.StatusError(src.URL, page); ee != nil {
		return nil, ee
	}

	text, title, err := ExtractText(page.HTML)
	if err != nil {
		ee := extractors.EmptyText(src.URL, page)
		ee.Err = fmt.Errorf("parse rendered page: %w", err)
		return nil, ee
	}
	if text == "" {
		return nil, extractors.EmptyText(src.URL, page)
	}

	return &domain.Extraction{
		Text:     text,
		PDF:      page.PDF,
		Title:    title,
		FinalURL: page.FinalURL,
	}, nil
}

// ExtractText returns the readable text and title of a rendered page.
func ExtractText(markup string) (text, title string, err error) {
	doc, err := extractors.ParseHTML(markup)
	if err != nil {
		return "", "", err
	}
	title = extractors.Title(doc)

	for _, sel := range ContentSelectors {
		found := doc.Find(sel)
		if found.Length() == 0 {
			continue
		}
		if t := extractors.BlockText(found.First()); utf8.RuneCountInString(t) >= MinContentLength {
			return t, title, nil
		}
	}
	return extractors.BlockText(doc.Find("body")), title, nil
}
