// Package docdetails provides the document details view for the TUI.
package docdetails

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/views/documents"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
)

// View displays the metadata of one document.
type View struct {
	styles          *styles.Styles
	keymap          *keymap.KeyMap
	documentService driving.DocumentService
	ctx             context.Context

	document     *domain.Document
	from         messages.ViewType
	width        int
	height       int
	ready        bool
	err          error
	message      string
	scrollOffset int
}

// NewView creates a new document details view.
func NewView(s *styles.Styles, km *keymap.KeyMap, documentService driving.DocumentService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &View{
		styles:          s,
		keymap:          km,
		documentService: documentService,
		ctx:             context.Background(),
		from:            messages.ViewSearch,
		width:           80,
		height:          24,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// SetDocument shows doc and remembers the view to return to.
func (v *View) SetDocument(doc *domain.Document, from messages.ViewType) {
	v.document = doc
	v.from = from
	v.err = nil
	v.message = ""
	v.scrollOffset = 0
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the details view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.StatusMessage:
		v.message = msg.Text
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

// handleKeyMsg processes keyboard input.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()

	switch {
	case keymap.Matches(keyStr, v.keymap.Back):
		from := v.from
		return v, func() tea.Msg {
			return messages.ViewChanged{View: from}
		}
	case keymap.Matches(keyStr, v.keymap.Up):
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case keymap.Matches(keyStr, v.keymap.Down):
		if maxOffset := len(v.buildContent()) - v.visibleLines(); v.scrollOffset < maxOffset {
			v.scrollOffset++
		}
	case keymap.Matches(keyStr, v.keymap.Open):
		if v.document != nil {
			v.err = nil
			return v, documents.OpenCmd(v.ctx, v.documentService, v.document.ID, false)
		}
	case keymap.Matches(keyStr, v.keymap.OpenSource):
		if v.document != nil {
			v.err = nil
			return v, documents.OpenCmd(v.ctx, v.documentService, v.document.ID, true)
		}
	}

	return v, nil
}

// visibleLines returns the number of content lines that fit.
func (v *View) visibleLines() int {
	// Reserve space for title, separator, help, and padding
	return max(v.height-8, 5)
}

// buildContent builds the field lines for the current document.
func (v *View) buildContent() []string {
	if v.document == nil {
		return nil
	}
	d := v.document

	lines := []string{
		v.formatField("ID", fmt.Sprintf("%d", d.ID)),
		v.formatField("Original", d.OriginalFilename),
		v.formatField("File", d.Filename),
		v.formatField("Kind", string(d.SourceKind)),
	}
	if d.SourceURL != "" {
		lines = append(lines, v.formatField("URL", d.SourceURL))
	}
	lines = append(lines,
		v.formatField("Size", formatSize(d.FileSize)),
		v.formatField("Created", d.CreatedAt.Local().Format(time.DateTime)),
		v.formatField("Status", string(d.Status)),
		v.formatField("Chunks", fmt.Sprintf("%d", d.ChunksCount)),
	)
	if d.StatusError != "" {
		lines = append(lines, v.formatField("Error", d.StatusError))
	}
	return lines
}

// formatField formats a field for display.
func (v *View) formatField(label, value string) string {
	return fmt.Sprintf("%-10s %s", label+":", value)
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// View renders the document details view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Document Details"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", min(v.width-4, 60)))
	b.WriteString("\n\n")

	if v.document == nil {
		b.WriteString(v.styles.Muted.Render("No document selected"))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	lines := v.buildContent()
	visibleLines := v.visibleLines()
	end := min(v.scrollOffset+visibleLines, len(lines))
	for i := v.scrollOffset; i < end; i++ {
		label, value, _ := strings.Cut(lines[i], ":")
		if strings.HasPrefix(label, "Status") {
			b.WriteString(v.styles.Subtitle.Render(label + ":"))
			b.WriteString(v.styles.Status(v.document.Status).Render(value))
		} else {
			b.WriteString(v.styles.Subtitle.Render(label + ":"))
			b.WriteString(v.styles.Normal.Render(value))
		}
		b.WriteString("\n")
	}

	if len(lines) > visibleLines {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [Line %d-%d of %d]",
			v.scrollOffset+1, end, len(lines))))
	}

	b.WriteString("\n")
	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n")
	} else if v.message != "" {
		b.WriteString(v.styles.Success.Render(v.message))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(v.renderHelp())

	return b.String()
}

// renderHelp renders the help footer.
func (v *View) renderHelp() string {
	return v.styles.Help.Render(status.Hints(v.keymap.DetailsHelp()))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Document returns the document on display.
func (v *View) Document() *domain.Document {
	return v.document
}

// From returns the view that opened the details.
func (v *View) From() messages.ViewType {
	return v.from
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
