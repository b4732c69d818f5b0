// Package extractortest provides a scripted Renderer for tests.
package extractortest

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// Ensure Renderer implements the interface.
var _ driven.Renderer = (*Renderer)(nil)

// Renderer returns scripted pages per URL and records requests.
type Renderer struct {
	mu       sync.Mutex
	Pages    map[string]*driven.RenderedPage
	Errs     map[string][]error
	Requests []driven.RenderRequest

	// Block makes navigation hang until the request's navigation timeout
	// or the context ends.
	Block bool

	// Settle is spent after navigation, outside the navigation timeout,
	// as a browser does while waiting for late content.
	Settle time.Duration
}

// New creates an empty scripted renderer.
func New() *Renderer {
	return &Renderer{
		Pages: make(map[string]*driven.RenderedPage),
		Errs:  make(map[string][]error),
	}
}

// Page scripts the page returned for url. FinalURL defaults to url and
// PDF to a minimal artifact.
func (r *Renderer) Page(url string, status int, html string) *Renderer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Pages[url] = &driven.RenderedPage{FinalURL: url, StatusCode: status, HTML: html, PDF: MinimalPDF}
	return r
}

// Redirect scripts a render that ends at finalURL.
func (r *Renderer) Redirect(url, finalURL, html string) *Renderer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Pages[url] = &driven.RenderedPage{FinalURL: finalURL, StatusCode: 200, HTML: html, PDF: MinimalPDF}
	return r
}

// FailNext queues errors returned, in order, before the scripted page.
func (r *Renderer) FailNext(url string, errs ...error) *Renderer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errs[url] = append(r.Errs[url], errs...)
	return r
}

// Render implements driven.Renderer.
func (r *Renderer) Render(ctx context.Context, req driven.RenderRequest) (*driven.RenderedPage, error) {
	r.mu.Lock()
	r.Requests = append(r.Requests, req)
	block, settle := r.Block, r.Settle
	var queued error
	if errs := r.Errs[req.URL]; len(errs) > 0 {
		queued = errs[0]
		r.Errs[req.URL] = errs[1:]
	}
	page, ok := r.Pages[req.URL]
	r.mu.Unlock()

	if block {
		navCtx, cancel := ctx, context.CancelFunc(func() {})
		if req.NavigationTimeout > 0 {
			navCtx, cancel = context.WithTimeout(ctx, req.NavigationTimeout)
		}
		<-navCtx.Done()
		err := navCtx.Err()
		cancel()
		return nil, err
	}
	if settle > 0 {
		t := time.NewTimer(settle)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if queued != nil {
		return nil, queued
	}
	if !ok {
		return &driven.RenderedPage{FinalURL: req.URL, StatusCode: 404, PDF: MinimalPDF}, nil
	}
	cp := *page
	return &cp, nil
}

// Calls returns the number of Render calls.
func (r *Renderer) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Requests)
}

// Close implements driven.Renderer.
func (r *Renderer) Close() error { return nil }

// MinimalPDF is a tiny artifact standing in for a printed page.
var MinimalPDF = []byte("%PDF-1.4\n%test\n%%EOF\n")
