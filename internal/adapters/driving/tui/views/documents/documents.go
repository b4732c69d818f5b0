// Package documents provides the documents list view component for the TUI.
package documents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
)

// PageSize is the number of documents loaded at once.
const PageSize = 200

// ErrNoDocumentService indicates that no document service was provided.
var ErrNoDocumentService = errors.New("document service is required")

// filters is the cycle order of the status filter. The empty status
// shows every document.
var filters = []domain.VectorizationStatus{
	"",
	domain.StatusCompleted,
	domain.StatusFailed,
	domain.StatusPending,
}

// View is the documents list view.
type View struct {
	styles          *styles.Styles
	keymap          *keymap.KeyMap
	documentService driving.DocumentService
	ctx             context.Context

	documents    []domain.Document
	stats        domain.DocumentStats
	filter       int
	selected     int
	width        int
	height       int
	ready        bool
	err          error
	loading      bool
	message      string
	scrollOffset int
}

// NewView creates a new documents view.
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
		documents:       []domain.Document{},
		width:           80,
		height:          24,
	}
}

// WithContext sets the context for the view.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init loads the first page of documents.
func (v *View) Init() tea.Cmd {
	return v.Load()
}

// Load returns a command that loads documents for the current filter.
func (v *View) Load() tea.Cmd {
	v.loading = true
	svc, ctx := v.documentService, v.ctx
	opts := domain.ListOptions{Status: filters[v.filter], Limit: PageSize}
	return func() tea.Msg {
		if svc == nil {
			return messages.DocumentsLoaded{Err: ErrNoDocumentService}
		}
		docs, err := svc.List(ctx, opts)
		if err != nil {
			return messages.DocumentsLoaded{Err: err}
		}
		stats, err := svc.Stats(ctx)
		return messages.DocumentsLoaded{Documents: docs, Stats: stats, Err: err}
	}
}

// Update handles messages for the documents view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.DocumentsLoaded:
		v.loading = false
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.documents = msg.Documents
		v.stats = msg.Stats
		v.err = nil
		if v.selected >= len(v.documents) {
			v.selected = max(len(v.documents)-1, 0)
		}
		v.adjustScroll()
		return v, nil

	case messages.StatusMessage:
		v.message = msg.Text
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

// handleKeyMsg handles key presses in list mode.
func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	keyStr := msg.String()
	v.message = ""

	switch {
	case keymap.Matches(keyStr, v.keymap.Up):
		if v.selected > 0 {
			v.selected--
			v.adjustScroll()
		}
	case keymap.Matches(keyStr, v.keymap.Down):
		if v.selected < len(v.documents)-1 {
			v.selected++
			v.adjustScroll()
		}
	case keymap.Matches(keyStr, v.keymap.Select):
		if doc := v.SelectedDocument(); doc != nil {
			id := doc.ID
			return v, func() tea.Msg {
				return messages.DocumentRequested{ID: id, From: messages.ViewDocuments}
			}
		}
	case keymap.Matches(keyStr, v.keymap.Open):
		if doc := v.SelectedDocument(); doc != nil {
			return v, OpenCmd(v.ctx, v.documentService, doc.ID, false)
		}
	case keymap.Matches(keyStr, v.keymap.Filter):
		v.filter = (v.filter + 1) % len(filters)
		v.selected = 0
		v.scrollOffset = 0
		return v, v.Load()
	case keymap.Matches(keyStr, v.keymap.Reload):
		return v, v.Load()
	case keymap.Matches(keyStr, v.keymap.Back):
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewSearch}
		}
	}

	return v, nil
}

// OpenCmd returns a command that opens a document in the system viewer.
func OpenCmd(ctx context.Context, svc driving.DocumentService, id int64, source bool) tea.Cmd {
	return func() tea.Msg {
		if svc == nil {
			return messages.ErrorOccurred{Err: ErrNoDocumentService}
		}
		if err := svc.Open(ctx, id, source); err != nil {
			return messages.ErrorOccurred{Err: err}
		}
		return messages.StatusMessage{Text: fmt.Sprintf("Opened document %d", id)}
	}
}

// adjustScroll adjusts the scroll offset to keep the selected item visible.
func (v *View) adjustScroll() {
	visibleItems := v.visibleItemCount()
	if v.selected < v.scrollOffset {
		v.scrollOffset = v.selected
	} else if v.selected >= v.scrollOffset+visibleItems {
		v.scrollOffset = v.selected - visibleItems + 1
	}
}

// visibleItemCount returns the number of items that can be displayed.
func (v *View) visibleItemCount() int {
	// Reserve lines for title, totals, help, and padding
	return max(v.height-9, 1)
}

// View renders the documents view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render(fmt.Sprintf("Documents (%s)", v.FilterLabel())))
	b.WriteString("\n")
	b.WriteString(v.styles.Muted.Render(fmt.Sprintf("%d total, %d completed, %d failed, %d pending, %d chunks",
		v.stats.Total, v.stats.Completed, v.stats.Failed, v.stats.Pending, v.stats.Chunks)))
	b.WriteString("\n\n")

	switch {
	case v.loading:
		b.WriteString(v.styles.Muted.Render("Loading documents..."))
	case v.err != nil:
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
	case len(v.documents) == 0:
		b.WriteString(v.styles.Muted.Render("No documents."))
	default:
		visibleItems := v.visibleItemCount()
		end := min(v.scrollOffset+visibleItems, len(v.documents))
		for i := v.scrollOffset; i < end; i++ {
			b.WriteString(v.renderDocument(i, &v.documents[i]))
			b.WriteString("\n")
		}
		if len(v.documents) > visibleItems {
			b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [%d-%d of %d]",
				v.scrollOffset+1, end, len(v.documents))))
		}
	}

	b.WriteString("\n\n")
	if v.message != "" {
		b.WriteString(v.styles.Normal.Render(v.message))
		b.WriteString("\n")
	}
	b.WriteString(v.styles.Help.Render(status.Hints(v.keymap.DocumentsHelp())))

	return b.String()
}

// renderDocument renders a single document line.
func (v *View) renderDocument(index int, doc *domain.Document) string {
	indicator := "  "
	if index == v.selected {
		indicator = "> "
	}

	name := doc.OriginalFilename
	if doc.SourceURL != "" {
		name = doc.SourceURL
	}
	maxNameLen := max(v.width-30, 10)
	if r := []rune(name); len(r) > maxNameLen {
		name = string(r[:maxNameLen-3]) + "..."
	}

	label := fmt.Sprintf("%s%5d  %-*s", indicator, doc.ID, maxNameLen, name)
	state := string(doc.Status)
	if doc.Status == domain.StatusCompleted {
		state = fmt.Sprintf("%s (%d)", doc.Status, doc.ChunksCount)
	}

	if index == v.selected {
		return v.styles.Selected.Render(label + "  " + state)
	}
	return v.styles.Normal.Render(label+"  ") + v.styles.Status(doc.Status).Render(state)
}

// FilterLabel names the active status filter.
func (v *View) FilterLabel() string {
	if f := filters[v.filter]; f != "" {
		return string(f)
	}
	return "all"
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Documents returns the current list of documents.
func (v *View) Documents() []domain.Document {
	return v.documents
}

// SelectedIndex returns the currently selected document index.
func (v *View) SelectedIndex() int {
	return v.selected
}

// SelectedDocument returns the currently selected document.
func (v *View) SelectedDocument() *domain.Document {
	if v.selected < len(v.documents) {
		return &v.documents[v.selected]
	}
	return nil
}

// Loading reports whether a load is in flight.
func (v *View) Loading() bool {
	return v.loading
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}
