package domain

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Source describes what to extract. Exactly one of Path or URL is set.
type Source struct {
	// Kind selects the extractor variant.
	Kind SourceKind

	// Path points at a PDF already in file storage.
	Path string

	// URL is the page to render.
	URL string

	// Cookies is the session blob for gated pages.
	Cookies Secret
}

// Extraction is the output shared by every extractor variant.
type Extraction struct {
	// Text is the extracted plain text.
	Text string

	// PDF is the canonical artifact for the source.
	PDF []byte

	// Title is a best-effort display title.
	Title string

	// FinalURL is where navigation ended after redirects.
	FinalURL string
}

const pageMarkerPrefix = "--- Page "

// PageMarker is the line placed before page n of extracted PDF text.
func PageMarker(n int) string {
	return fmt.Sprintf("%s%d ---", pageMarkerPrefix, n)
}

// IsPageMarker reports whether line is a page marker.
func IsPageMarker(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, pageMarkerPrefix) && strings.HasSuffix(line, " ---")
}

// ContentLength counts the characters of text ignoring page markers and
// surrounding whitespace.
func ContentLength(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if IsPageMarker(line) {
			continue
		}
		n += utf8.RuneCountInString(strings.TrimSpace(line))
	}
	return n
}

const redacted = "[REDACTED]"

// Secret holds an opaque credential. It redacts itself in every
// formatting, JSON and slog path so it cannot leak into logs.
type Secret struct {
	value string
}

// NewSecret wraps a credential value.
func NewSecret(v string) Secret {
	return Secret{value: v}
}

// Reveal returns the raw value. Only adapters applying the credential
// should call it.
func (s Secret) Reveal() string {
	return s.value
}

// Empty reports whether no credential was supplied.
func (s Secret) Empty() bool {
	return s.value == ""
}

func (s Secret) String() string {
	if s.value == "" {
		return ""
	}
	return redacted
}

// GoString redacts %#v output.
func (s Secret) GoString() string {
	return s.String()
}

// MarshalJSON never serialises the value.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}
