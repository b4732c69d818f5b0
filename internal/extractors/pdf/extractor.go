// Package pdf extracts text from stored PDF files using pdftotext.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found: " + InstallInstructions())

// maxTitleLength bounds lines considered as a title.
const maxTitleLength = 200

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor reads PDFs page by page.
type Extractor struct {
	runner driven.CommandRunner
}

// New creates an extractor that shells out to pdftotext.
func New() *Extractor {
	return &Extractor{runner: execRunner{}}
}

// NewWithRunner creates an extractor with a custom command runner.
func NewWithRunner(runner driven.CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Kind returns domain.SourcePDF.
func (e *Extractor) Kind() domain.SourceKind {
	return domain.SourcePDF
}

// Extract reads the PDF at src.Path. Pages are joined with a
// "--- Page N ---" marker so chunks never silently span unrelated pages.
func (e *Extractor) Extract(ctx context.Context, src domain.Source) (*domain.Extraction, error) {
	if src.Path == "" {
		return nil, fmt.Errorf("%w: pdf source has no path", domain.ErrInvalidInput)
	}

	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	out, err := e.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", src.Path, "-")
	if err != nil {
		if errors.Is(err, ErrPDFToolNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}

	text := JoinPages(SplitPages(string(out)))
	if !hasPrintable(text) {
		ee := domain.NewExtractionError(domain.ReasonEmptyText, "", errors.New("no extractable text, the PDF may be image-only"))
		ee.PDF = data
		return nil, ee
	}

	return &domain.Extraction{
		Text:  text,
		PDF:   data,
		Title: extractTitle(text, src.Path),
	}, nil
}

// SplitPages splits pdftotext output on form feeds and cleans each page.
func SplitPages(out string) []string {
	raw := strings.Split(out, "\f")
	pages := make([]string, 0, len(raw))
	for _, p := range raw {
		pages = append(pages, CleanText(p))
	}
	return pages
}

// JoinPages concatenates non-empty pages with 1-based page markers.
func JoinPages(pages []string) string {
	var b strings.Builder
	for i, p := range pages {
		if p == "" {
			continue
		}
		b.WriteString("\n" + domain.PageMarker(i+1) + "\n")
		b.WriteString(p)
	}
	return strings.TrimSpace(b.String())
}

var (
	inlineSpace   = regexp.MustCompile(`[ \t\x{00A0}]+`)
	hyphenBreak   = regexp.MustCompile(`(\p{L})-\n(\p{Ll})`)
	excessNewline = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalises extraction artifacts while keeping paragraph
// breaks for the chunker: runs of spaces collapse, words hyphenated
// across lines are rejoined and blank-line runs shrink to one.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	s = hyphenBreak.ReplaceAllString(s, "$1$2")
	s = excessNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// extractTitle returns the first short non-marker line, or the
// filename without its stored prefix and extension.
func extractTitle(content, path string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || domain.IsPageMarker(line) || len(line) > maxTitleLength {
			continue
		}
		return line
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.TrimSpace(strings.ReplaceAll(base, "_", " "))
}

func hasPrintable(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) && unicode.IsPrint(r) {
			return true
		}
	}
	return false
}

// CheckAvailable reports whether pdftotext is on PATH.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions describes how to install pdftotext.
func InstallInstructions() string {
	return "install poppler (macOS: brew install poppler, Debian/Ubuntu: apt install poppler-utils)"
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}
