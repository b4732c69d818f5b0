// Package rod renders pages in headless Chromium through go-rod.
//
// The browser is launched on the first render and shared by every
// later call; each render gets its own page (tab).
package rod

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// Ensure Renderer implements the interface.
var _ driven.Renderer = (*Renderer)(nil)

// Settle delays and the content wait, applied after the load event.
const (
	DefaultLoadSettle   = 3 * time.Second
	DefaultScrollSettle = 2 * time.Second
	DefaultContentWait  = 10 * time.Second
)

// DefaultCaptureTimeout bounds reading the HTML and printing the PDF.
const DefaultCaptureTimeout = 30 * time.Second

// DefaultCaptureReserve is kept free for capture when the caller's
// deadline is close. Settle delays and the content wait shrink to fit.
const DefaultCaptureReserve = 5 * time.Second

// A4 in inches.
const (
	a4Width  = 8.27
	a4Height = 11.69
)

// Config configures the browser.
type Config struct {
	// Bin is the Chromium executable. Empty lets the launcher find or
	// download one.
	Bin string

	// NoSandbox disables the Chromium sandbox, needed when running as root
	// in containers.
	NoSandbox bool

	LoadSettle     time.Duration
	ScrollSettle   time.Duration
	ContentWait    time.Duration
	CaptureTimeout time.Duration
	CaptureReserve time.Duration
}

// Renderer is a shared headless browser.
type Renderer struct {
	cfg Config

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	closed   bool
}

// New creates a renderer. No browser is started until the first Render.
func New(cfg Config) *Renderer {
	if cfg.LoadSettle == 0 {
		cfg.LoadSettle = DefaultLoadSettle
	}
	if cfg.ScrollSettle == 0 {
		cfg.ScrollSettle = DefaultScrollSettle
	}
	if cfg.ContentWait == 0 {
		cfg.ContentWait = DefaultContentWait
	}
	if cfg.CaptureTimeout == 0 {
		cfg.CaptureTimeout = DefaultCaptureTimeout
	}
	if cfg.CaptureReserve == 0 {
		cfg.CaptureReserve = DefaultCaptureReserve
	}
	return &Renderer{cfg: cfg}
}

// connect returns the running browser, launching it if needed. Launch
// failures wrap domain.ErrRendererUnavailable.
func (r *Renderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("%w: renderer is closed", domain.ErrRendererUnavailable)
	}
	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().Headless(true).NoSandbox(r.cfg.NoSandbox)
	if r.cfg.Bin != "" {
		l = l.Bin(r.cfg.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launch browser: %v", domain.ErrRendererUnavailable, err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: connect browser: %v", domain.ErrRendererUnavailable, err)
	}
	logger.Debug("Browser launched at %s", controlURL)

	r.browser = browser
	r.launcher = l
	return browser, nil
}

// Render loads the page and prints it to PDF.
func (r *Renderer) Render(ctx context.Context, req driven.RenderRequest) (*driven.RenderedPage, error) {
	// Cancelling also ends the status listener of the tab.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	browser, err := r.connect()
	if err != nil {
		return nil, err
	}

	t, err := openTab(ctx, browser, req)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", ctxErr(ctx, err))
	}
	defer t.close()

	return r.render(ctx, t, req)
}

// render drives one tab: navigation within req.NavigationTimeout, then
// the settle delays and content wait, then capture.
func (r *Renderer) render(ctx context.Context, t tab, req driven.RenderRequest) (*driven.RenderedPage, error) {
	navCtx, cancelNav := ctx, context.CancelFunc(func() {})
	if req.NavigationTimeout > 0 {
		navCtx, cancelNav = context.WithTimeout(ctx, req.NavigationTimeout)
	}
	err := t.navigate(navCtx, req.URL)
	if err != nil {
		err = fmt.Errorf("navigate: %w", ctxErr(navCtx, err))
	}
	cancelNav()
	if err != nil {
		return nil, err
	}

	if err := sleep(ctx, r.budget(ctx, r.cfg.LoadSettle)); err != nil {
		return nil, err
	}
	if err := t.scroll(ctx); err != nil {
		logger.Debug("Scroll failed on %s: %v", req.URL, err)
	}
	if err := sleep(ctx, r.budget(ctx, r.cfg.ScrollSettle)); err != nil {
		return nil, err
	}

	if req.WaitSelector != "" {
		wait := r.budget(ctx, r.cfg.ContentWait)
		waitCtx, cancelWait := context.WithTimeout(ctx, wait)
		err := t.waitFor(waitCtx, req.WaitSelector)
		cancelWait()
		// Missing content is judged by the extractor, not here.
		if err != nil {
			logger.Debug("No %q on %s after %s", req.WaitSelector, req.URL, wait)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	captureCtx, cancelCapture := context.WithTimeout(ctx, r.cfg.CaptureTimeout)
	defer cancelCapture()

	rendered := &driven.RenderedPage{FinalURL: req.URL, StatusCode: t.status()}
	if u := t.url(captureCtx); u != "" {
		rendered.FinalURL = u
	}

	html, err := t.html(captureCtx)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", ctxErr(captureCtx, err))
	}
	rendered.HTML = html

	pdf, err := t.pdf(captureCtx)
	if err != nil {
		return nil, fmt.Errorf("print pdf: %w", ctxErr(captureCtx, err))
	}
	rendered.PDF = pdf

	logger.Debug("Rendered %s: status %d, %d bytes html, %d bytes pdf",
		rendered.FinalURL, rendered.StatusCode, len(rendered.HTML), len(rendered.PDF))
	return rendered, nil
}

// budget shortens d so that CaptureReserve is left before the deadline
// of ctx. Without a deadline d is returned unchanged.
func (r *Renderer) budget(ctx context.Context, d time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return d
	}
	left := time.Until(deadline) - r.cfg.CaptureReserve
	if left <= 0 {
		return 0
	}
	return min(d, left)
}

// Close shuts the browser down. Render fails afterwards.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.launcher.Kill()
	r.browser = nil
	r.launcher = nil
	return err
}

// tab is the part of a browser page that render drives.
type tab interface {
	// navigate loads url and waits for the load event.
	navigate(ctx context.Context, url string) error
	scroll(ctx context.Context) error
	// waitFor returns once selector matches or ctx is done.
	waitFor(ctx context.Context, selector string) error
	// status is the HTTP status of the main document, 0 if unknown.
	status() int
	url(ctx context.Context) string
	html(ctx context.Context) (string, error)
	pdf(ctx context.Context) ([]byte, error)
	close()
}

// rodTab is a tab backed by a rod page.
type rodTab struct {
	page     *rod.Page
	statusCh chan int
	last     int
}

// openTab creates a page with the user agent and cookies of req applied
// before any request is made.
func openTab(ctx context.Context, browser *rod.Browser, req driven.RenderRequest) (*rodTab, error) {
	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	t := &rodTab{page: page, statusCh: make(chan int, 1)}

	if req.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: req.UserAgent}); err != nil {
			t.close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	if len(req.Cookies) > 0 {
		if err := page.SetCookies(cookieParams(req.Cookies)); err != nil {
			t.close()
			return nil, fmt.Errorf("set cookies: %w", err)
		}
	}

	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		t.statusCh <- e.Response.Status
		return true
	})
	go wait()

	return t, nil
}

func (t *rodTab) navigate(ctx context.Context, url string) error {
	p := t.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (t *rodTab) scroll(ctx context.Context) error {
	_, err := t.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (t *rodTab) waitFor(ctx context.Context, selector string) error {
	_, err := t.page.Context(ctx).Element(selector)
	return err
}

func (t *rodTab) status() int {
	select {
	case t.last = <-t.statusCh:
	default:
	}
	return t.last
}

func (t *rodTab) url(ctx context.Context) string {
	info, err := t.page.Context(ctx).Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (t *rodTab) html(ctx context.Context) (string, error) {
	return t.page.Context(ctx).HTML()
}

func (t *rodTab) pdf(ctx context.Context) ([]byte, error) {
	stream, err := t.page.Context(ctx).PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		PaperWidth:      ptr(a4Width),
		PaperHeight:     ptr(a4Height),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()
	return io.ReadAll(stream)
}

func (t *rodTab) close() {
	_ = t.page.Close()
}

func cookieParams(cookies []driven.Cookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		params = append(params, &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   path,
			Secure: true,
		})
	}
	return params
}

// ctxErr prefers the context error so callers can tell a timeout from a
// browser failure.
func ctxErr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %v", cerr, err)
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func ptr[T any](v T) *T {
	return &v
}
