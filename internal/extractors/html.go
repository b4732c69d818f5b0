package extractors

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// UserAgent is sent with every render.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NoiseSelector matches elements that never carry readable content.
const NoiseSelector = "script, style, noscript, nav, header, footer, aside, iframe, svg, form, template"

// blockTags end a line when converting markup to text.
var blockTags = map[string]bool{
	"address": true, "article": true, "blockquote": true, "br": true, "dd": true,
	"div": true, "dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true,
	"h6": true, "hr": true, "li": true, "main": true, "ol": true, "p": true,
	"pre": true, "section": true, "table": true, "td": true, "th": true,
	"tr": true, "ul": true,
}

// ParseHTML parses a rendered page and drops non-content elements.
func ParseHTML(markup string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find(NoiseSelector).Remove()
	return doc, nil
}

// Title returns the document title.
func Title(doc *goquery.Document) string {
	return NormaliseWhitespace(doc.Find("title").First().Text())
}

// BlockText renders the selection as text, breaking lines at block
// elements the way a browser's innerText does.
func BlockText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeNode(&b, n)
	}
	return NormaliseWhitespace(b.String())
}

func writeNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	}
	block := n.Type == html.ElementNode && blockTags[n.Data]
	if block {
		b.WriteString("\n")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNode(b, c)
	}
	if block {
		b.WriteString("\n")
	}
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\x{00A0}\r\f\v]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// NormaliseWhitespace collapses spaces within lines and keeps at most one
// blank line between paragraphs.
func NormaliseWhitespace(s string) string {
	lines := strings.Split(horizontalSpace.ReplaceAllString(s, " "), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// RenderError maps a renderer failure to an ExtractionError. A browser
// that cannot start is returned as is.
func RenderError(url string, err error) error {
	var ee *domain.ExtractionError
	if errors.As(err, &ee) {
		return ee
	}
	if errors.Is(err, domain.ErrRendererUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewExtractionError(domain.ReasonFetchTimeout, url, err)
	}
	return domain.NewExtractionError(domain.ReasonHTTPError, url, err)
}

// StatusError returns an HTTP_ERROR for error statuses, nil otherwise.
// The rendered PDF is attached so the caller can persist it.
func StatusError(url string, page *driven.RenderedPage) *domain.ExtractionError {
	if page.StatusCode < 400 {
		return nil
	}
	ee := domain.NewExtractionError(domain.ReasonHTTPError, url, nil)
	ee.StatusCode = page.StatusCode
	ee.PDF = page.PDF
	return ee
}

// EmptyText returns the EMPTY_TEXT error for a rendered page.
func EmptyText(url string, page *driven.RenderedPage) *domain.ExtractionError {
	ee := domain.NewExtractionError(domain.ReasonEmptyText, url, errors.New("no readable text on page"))
	ee.PDF = page.PDF
	return ee
}
