// Package extractors selects and wraps the content extractor variants.
//
// Each variant converts one kind of source into plain text plus a
// canonical PDF artifact:
//
//   - pdf: an uploaded file already in storage
//   - web: any page, rendered in a headless browser
//   - profile: a gated profile page rendered with session cookies
package extractors

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// ProfileHost is the gated network handled by the profile variant.
const ProfileHost = "linkedin.com"

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps source kinds to extractors.
type Registry struct {
	extractors map[domain.SourceKind]driven.Extractor
}

// NewRegistry creates a registry holding the given extractors, keyed by
// their Kind. A later extractor for the same kind replaces an earlier one.
func NewRegistry(extractors ...driven.Extractor) *Registry {
	r := &Registry{extractors: make(map[domain.SourceKind]driven.Extractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds or replaces the extractor for its kind.
func (r *Registry) Register(e driven.Extractor) {
	r.extractors[e.Kind()] = e
}

// For returns the extractor for kind.
func (r *Registry) For(kind domain.SourceKind) (driven.Extractor, error) {
	e, ok := r.extractors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no extractor for source kind %q", domain.ErrInvalidInput, kind)
	}
	return e, nil
}

// Classify implements driven.ExtractorRegistry.
func (r *Registry) Classify(rawURL string, cookies domain.Secret) (domain.SourceKind, error) {
	return Classify(rawURL, cookies)
}

// FilenameFor implements driven.ExtractorRegistry. Unparseable URLs
// fall back to a generic name.
func (r *Registry) FilenameFor(rawURL string) string {
	u, err := ParseURL(rawURL)
	if err != nil {
		return "page.pdf"
	}
	return FilenameForURL(u)
}

// Classify selects the source kind for a URL. Gated profile URLs use
// the authenticated variant only when cookies are supplied; without
// them they are rendered like any other page.
func Classify(rawURL string, cookies domain.Secret) (domain.SourceKind, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return "", err
	}
	if IsProfileHost(u.Hostname()) && !cookies.Empty() {
		return domain.SourceProfile, nil
	}
	return domain.SourceWeb, nil
}

// ParseURL validates an absolute http(s) URL.
func ParseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported URL scheme %q", domain.ErrInvalidInput, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: URL has no host", domain.ErrInvalidInput)
	}
	return u, nil
}

// IsProfileHost reports whether host is the gated network or a subdomain.
func IsProfileHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == ProfileHost || strings.HasSuffix(host, "."+ProfileHost)
}

// FilenameForURL derives a PDF filename from a URL: the host with dots
// replaced by underscores plus the last path segment.
func FilenameForURL(u *url.URL) string {
	name := strings.ReplaceAll(u.Hostname(), ".", "_")
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if last := parts[len(parts)-1]; last != "" {
		name += "_" + last
	}
	return strings.TrimSuffix(name, ".pdf") + ".pdf"
}
