// Package profile extracts structured profile sections from a gated
// professional network page using caller-supplied session cookies.
//
// The cookie blob is applied to the browser context before navigation
// and is never logged or retained.
package profile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/extractors"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// DefaultTimeout bounds navigation to the load event. It is shorter than
// the generic web timeout because the network throttles slow automated
// sessions. Settling and the marker wait come on top of it.
const DefaultTimeout = 15 * time.Second

// cookieDomain scopes injected cookies to every subdomain.
const cookieDomain = "." + extractors.ProfileHost

// authPaths are where the network sends sessions it does not accept.
var authPaths = []string{"/login", "/authwall", "/checkpoint", "/uas/login", "/signup"}

// markerSelector matches elements only present on a signed-in profile.
const markerSelector = ".text-heading-xlarge, .pv-text-details__left-panel, .pv-top-card, " +
	".pv-about-section, .pv-experience-section, .profile-section-card"

// SectionSelectors are tried in order when structured parsing finds nothing.
var SectionSelectors = []string{
	".pv-text-details__left-panel",
	".pv-top-card-profile-picture__container + div",
	".text-heading-xlarge",
	".text-body-medium",
	".pv-shared-text-with-see-more",
	".pv-about-section",
	".pv-profile-section",
	".pv-experience-section",
	".pv-education-section",
	".profile-section-card",
	`[data-field="experience_company"]`,
	`[data-field="experience_title"]`,
}

const (
	nameSelector       = ".text-heading-xlarge, .pv-text-details__left-panel h1"
	headlineSelector   = ".text-body-medium.break-words, .pv-text-details__left-panel .text-body-medium"
	aboutSelector      = ".pv-about-section .pv-shared-text-with-see-more, .pv-about__summary-text, #about ~ .display-flex .inline-show-more-text"
	experienceSelector = ".pv-experience-section .pv-entity__summary-info, .experience-item, #experience ~ .pvs-list__outer-container li.artdeco-list__item"
	educationSelector  = ".pv-education-section .pv-entity__summary-info, .education-item, #education ~ .pvs-list__outer-container li.artdeco-list__item"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor renders an authenticated profile page.
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

// New creates a profile extractor on top of a renderer.
func New(renderer driven.Renderer, opts ...Option) *Extractor {
	e := &Extractor{renderer: renderer, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Kind returns domain.SourceProfile.
func (e *Extractor) Kind() domain.SourceKind {
	return domain.SourceProfile
}

// Extract injects the cookies, renders the profile and isolates its
// sections. A login redirect or a page without profile markers is
// AUTH_EXPIRED so the caller refreshes credentials instead of retrying.
func (e *Extractor) Extract(ctx context.Context, src domain.Source) (*domain.Extraction, error) {
	u, err := extractors.ParseURL(src.URL)
	if err != nil {
		return nil, err
	}
	if !extractors.IsProfileHost(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s is not a profile URL", domain.ErrInvalidInput, u.Hostname())
	}

	// Unusable pairs are dropped and the page is rendered regardless, so
	// a rejected session still leaves its auth wall on record.
	cookies, skipped := ParseCookies(src.Cookies.Reveal(), cookieDomain)
	if skipped > 0 {
		logger.Debug("Dropped %d unusable cookie entries for %s", skipped, u.Hostname())
	}

	page, err := e.renderer.Render(ctx, driven.RenderRequest{
		URL:               src.URL,
		Cookies:           cookies,
		UserAgent:         extractors.UserAgent,
		NavigationTimeout: e.timeout,
		WaitSelector:      markerSelector,
	})
	if err != nil {
		return nil, extractors.RenderError(src.URL, err)
	}

	if IsAuthRedirect(page.FinalURL) {
		return nil, authExpired(src.URL, page, withCookieNote(fmt.Errorf("redirected to %s", redactQuery(page.FinalURL)), cookies))
	}
	if page.StatusCode == 401 || page.StatusCode == 403 || page.StatusCode == 999 {
		return nil, authExpired(src.URL, page, withCookieNote(fmt.Errorf("status %d", page.StatusCode), cookies))
	}
	if ee := extractors.StatusError(src.URL, page); ee != nil {
		return nil, ee
	}

	doc, err := extractors.ParseHTML(page.HTML)
	if err != nil {
		ee := extractors.EmptyText(src.URL, page)
		ee.Err = err
		return nil, ee
	}
	if doc.Find(markerSelector).Length() == 0 {
		return nil, authExpired(src.URL, page, withCookieNote(errors.New("no profile markers on page"), cookies))
	}

	text := ExtractSections(doc)
	if text == "" {
		return nil, extractors.EmptyText(src.URL, page)
	}

	return &domain.Extraction{
		Text:     text,
		PDF:      page.PDF,
		Title:    extractors.Title(doc),
		FinalURL: page.FinalURL,
	}, nil
}

// ExtractSections builds "Name/Headline/About/Experience N/Education N"
// sections. It falls back to the first matching section selector and
// then to the body text.
func ExtractSections(doc *goquery.Document) string {
	var parts []string
	add := func(label string, sel *goquery.Selection) {
		if t := extractors.BlockText(sel); t != "" {
			parts = append(parts, label+": "+t)
		}
	}

	add("Name", doc.Find(nameSelector).First())
	add("Headline", doc.Find(headlineSelector).First())
	add("About", doc.Find(aboutSelector).First())

	n := 0
	doc.Find(experienceSelector).Each(func(_ int, s *goquery.Selection) {
		if t := extractors.BlockText(s); t != "" {
			n++
			parts = append(parts, fmt.Sprintf("Experience %d: %s", n, t))
		}
	})
	n = 0
	doc.Find(educationSelector).Each(func(_ int, s *goquery.Selection) {
		if t := extractors.BlockText(s); t != "" {
			n++
			parts = append(parts, fmt.Sprintf("Education %d: %s", n, t))
		}
	})

	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}

	for _, sel := range SectionSelectors {
		if t := extractors.BlockText(doc.Find(sel).First()); t != "" {
			return t
		}
	}
	return extractors.BlockText(doc.Find("body"))
}

// IsAuthRedirect reports whether a final URL is a sign-in wall.
func IsAuthRedirect(finalURL string) bool {
	u, err := url.Parse(finalURL)
	if err != nil || u.Path == "" {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, p := range authPaths {
		if path == p || strings.HasPrefix(path, p+"/") || strings.HasPrefix(path, p+"?") {
			return true
		}
	}
	return false
}

func authExpired(rawURL string, page *driven.RenderedPage, cause error) *domain.ExtractionError {
	ee := domain.NewExtractionError(domain.ReasonAuthExpired, rawURL, cause)
	ee.PDF = page.PDF
	return ee
}

// withCookieNote notes that no usable cookie was sent, which explains
// the rejection better than the page does.
func withCookieNote(cause error, cookies []driven.Cookie) error {
	if len(cookies) > 0 {
		return cause
	}
	return fmt.Errorf("%w (cookie blob had no usable cookies)", cause)
}

// redactQuery drops query strings, which can echo session tokens.
func redactQuery(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
