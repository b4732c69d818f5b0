// Package chunker provides a recursive, breakpoint-aware text chunker.
//
// Text is split on the coarsest separator that occurs (paragraphs, then
// lines, then sentences, then words) and the pieces are merged greedily
// into chunks of at most the configured size, each starting with an
// overlapping tail of the previous chunk. Pieces that are still too large
// are split again with finer separators. The empty separator hard-cuts by
// character and is only reached when nothing else fits.
//
// Sizes are measured in runes. The output is a pure function of the
// input text and the options.
package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// DefaultSeparators are tried in order, coarsest first.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "? ", "! ", " ", ""}

// Ensure Chunker implements the interface.
var _ driven.Chunker = (*Chunker)(nil)

// Chunker splits text into overlapping segments.
type Chunker struct {
	chunkSize  int
	overlap    int
	separators [][]rune
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		c.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		c.overlap = overlap
	}
}

// WithSeparators replaces the separator list. A trailing "" is appended
// when missing so hard truncation stays available.
func WithSeparators(seps ...string) Option {
	return func(c *Chunker) {
		c.separators = toRunes(seps)
	}
}

// New creates a chunker. Invalid settings are reported by Validate.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: toRunes(DefaultSeparators),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewValidated creates a chunker and validates it.
func NewValidated(opts ...Option) (*Chunker, error) {
	c := New(opts...)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks size and overlap.
func (c *Chunker) Validate() error {
	if c.chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, c.chunkSize)
	}
	if c.overlap < 0 || c.overlap >= c.chunkSize {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidInput, c.chunkSize, c.overlap)
	}
	return nil
}

// ChunkSize returns the configured size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// span is a half-open rune range into the source text.
type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// Chunk splits text into ordered chunks for the document.
func (c *Chunker) Chunk(documentID int64, text string) ([]domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &domain.ChunkingError{Reason: domain.ReasonEmptyInput}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	spans := c.split(runes, span{0, len(runes)}, c.separators)

	chunks := make([]domain.Chunk, 0, len(spans))
	prevEnd := 0
	for _, s := range spans {
		s = trimSpan(runes, s)
		if s.len() == 0 {
			continue
		}
		overlap := 0
		if len(chunks) > 0 && prevEnd > s.start {
			overlap = prevEnd - s.start
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: documentID,
			Index:      len(chunks),
			Text:       string(runes[s.start:s.end]),
			Span:       domain.Span{Start: s.start, End: s.end},
			Overlap:    overlap,
		})
		prevEnd = s.end
	}

	if len(chunks) == 0 {
		return nil, &domain.ChunkingError{Reason: domain.ReasonEmptyInput}
	}
	return chunks, nil
}

// split returns chunk spans covering s.
func (c *Chunker) split(runes []rune, s span, separators [][]rune) []span {
	sep, rest := pickSeparator(runes, s, separators)
	pieces := splitOn(runes, s, sep)

	var out, good []span
	for _, p := range pieces {
		if p.len() <= c.chunkSize {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			out = append(out, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
			continue
		}
		out = append(out, c.split(runes, p, rest)...)
	}
	if len(good) > 0 {
		out = append(out, c.merge(good)...)
	}
	return out
}

// merge joins contiguous pieces into chunks no longer than chunkSize,
// carrying up to overlap runes of trailing pieces into the next chunk.
func (c *Chunker) merge(pieces []span) []span {
	var out []span
	var window []span
	total := 0

	for _, p := range pieces {
		if total+p.len() > c.chunkSize && len(window) > 0 {
			out = append(out, span{window[0].start, window[len(window)-1].end})
			for len(window) > 0 && (total > c.overlap || total+p.len() > c.chunkSize) {
				total -= window[0].len()
				window = window[1:]
			}
		}
		window = append(window, p)
		total += p.len()
	}
	if len(window) > 0 {
		out = append(out, span{window[0].start, window[len(window)-1].end})
	}
	return out
}

// pickSeparator returns the first separator present in s and the finer
// separators after it. The empty separator always matches.
func pickSeparator(runes []rune, s span, separators [][]rune) ([]rune, [][]rune) {
	for i, sep := range separators {
		if len(sep) == 0 || indexRunes(runes[s.start:s.end], sep) >= 0 {
			return sep, separators[i+1:]
		}
	}
	return nil, nil
}

// splitOn cuts s after every occurrence of sep, keeping the separator at
// the end of the preceding piece so pieces stay contiguous.
func splitOn(runes []rune, s span, sep []rune) []span {
	if len(sep) == 0 {
		pieces := make([]span, 0, s.len())
		for i := s.start; i < s.end; i++ {
			pieces = append(pieces, span{i, i + 1})
		}
		return pieces
	}

	var pieces []span
	start := s.start
	for start < s.end {
		idx := indexRunes(runes[start:s.end], sep)
		if idx < 0 {
			pieces = append(pieces, span{start, s.end})
			break
		}
		end := start + idx + len(sep)
		pieces = append(pieces, span{start, end})
		start = end
	}
	return pieces
}

func indexRunes(haystack, needle []rune) int {
	n := len(needle)
	for i := 0; i+n <= len(haystack); i++ {
		match := true
		for j := 0; j < n; j++ {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func trimSpan(runes []rune, s span) span {
	for s.start < s.end && unicode.IsSpace(runes[s.start]) {
		s.start++
	}
	for s.end > s.start && unicode.IsSpace(runes[s.end-1]) {
		s.end--
	}
	return s
}

func toRunes(seps []string) [][]rune {
	out := make([][]rune, 0, len(seps)+1)
	hasEmpty := false
	for _, s := range seps {
		if s == "" {
			hasEmpty = true
		}
		out = append(out, []rune(s))
	}
	if !hasEmpty {
		out = append(out, nil)
	}
	return out
}
