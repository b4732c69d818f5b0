package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/views/docdetails"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/views/documents"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/views/search"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// App is the main TUI application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	// ports provides access to core services via driving ports.
	ports *Ports

	// ctx is the context for cancellation.
	ctx context.Context

	styles *styles.Styles
	keymap *keymap.KeyMap

	searchView     *search.View
	documentsView  *documents.View
	docDetailsView *docdetails.View

	// currentView tracks which view is active.
	currentView messages.ViewType

	// previousView is restored when help closes.
	previousView messages.ViewType

	// detailsFrom is the view that requested the pending document.
	detailsFrom messages.ViewType

	// err holds the last error that occurred.
	err error

	// width and height are terminal dimensions.
	width  int
	height int

	// ready indicates if the app has initialised.
	ready bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new TUI application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	return &App{
		ports:          ports,
		ctx:            context.Background(),
		styles:         s,
		keymap:         km,
		searchView:     search.NewView(s, km, ports.Search),
		documentsView:  documents.NewView(s, km, ports.Document),
		docDetailsView: docdetails.NewView(s, km, ports.Document),
		currentView:    messages.ViewSearch,
		previousView:   messages.ViewSearch,
		detailsFrom:    messages.ViewSearch,
	}, nil
}

// WithContext sets the context for the app and its views.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	a.searchView.WithContext(ctx)
	a.documentsView.WithContext(ctx)
	a.docDetailsView.WithContext(ctx)
	return a
}

// Init implements tea.Model.
// It runs initial commands when the program starts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("sercha-kb"),
		a.searchView.Init(),
	)
}

// Update implements tea.Model.
// It handles messages and updates the model state.
//
//nolint:gocyclo // central message handler requires complexity
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case messages.SearchCompleted:
		a.searchView, cmd = a.searchView.Update(msg)
		a.err = a.searchView.Err()
		return a, cmd

	case messages.DocumentsLoaded:
		a.documentsView, cmd = a.documentsView.Update(msg)
		a.err = a.documentsView.Err()
		return a, cmd

	case messages.DocumentRequested:
		a.detailsFrom = msg.From
		return a, a.loadDocument(msg.ID)

	case messages.DocumentLoaded:
		if msg.Err != nil {
			return a.Update(messages.ErrorOccurred{Err: msg.Err})
		}
		a.docDetailsView.SetDocument(msg.Document, a.detailsFrom)
		a.currentView = messages.ViewDocDetails
		return a, nil

	case messages.ViewChanged:
		return a, a.switchTo(msg.View)

	case messages.ErrorOccurred:
		a.err = msg.Err
		return a, a.forward(msg)

	case messages.StatusMessage:
		return a, a.forward(msg)

	case messages.Quit:
		return a, tea.Quit
	}

	// Cursor blinks and other component messages go to the active view.
	return a, a.forward(msg)
}

// handleKeyMsg applies the global bindings before the active view.
func (a *App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keyStr := msg.String()
	if keyStr == "ctrl+c" {
		return a, tea.Quit
	}

	typing := a.currentView == messages.ViewSearch && a.searchView.InputFocused()

	if a.currentView == messages.ViewHelp {
		if keymap.Matches(keyStr, a.keymap.Back) || keymap.Matches(keyStr, a.keymap.Help) {
			a.currentView = a.previousView
			return a, nil
		}
		if keymap.Matches(keyStr, a.keymap.Quit) {
			return a, tea.Quit
		}
		return a, nil
	}

	switch {
	case keymap.Matches(keyStr, a.keymap.Documents):
		if a.currentView == messages.ViewDocuments {
			return a, a.switchTo(messages.ViewSearch)
		}
		return a, a.switchTo(messages.ViewDocuments)
	case !typing && keymap.Matches(keyStr, a.keymap.Quit):
		return a, tea.Quit
	case !typing && keymap.Matches(keyStr, a.keymap.Help):
		a.previousView = a.currentView
		a.currentView = messages.ViewHelp
		return a, nil
	}

	return a, a.forward(msg)
}

// switchTo activates view and runs its entry command.
func (a *App) switchTo(view messages.ViewType) tea.Cmd {
	a.currentView = view
	switch view {
	case messages.ViewDocuments:
		return a.documentsView.Load()
	case messages.ViewSearch:
		if a.searchView.InputFocused() {
			return a.searchView.Init()
		}
	case messages.ViewDocDetails, messages.ViewHelp:
	}
	return nil
}

// forward sends msg to the active view.
func (a *App) forward(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.currentView {
	case messages.ViewSearch:
		a.searchView, cmd = a.searchView.Update(msg)
	case messages.ViewDocuments:
		a.documentsView, cmd = a.documentsView.Update(msg)
	case messages.ViewDocDetails:
		a.docDetailsView, cmd = a.docDetailsView.Update(msg)
	case messages.ViewHelp:
		// Help view doesn't handle messages
	}
	return cmd
}

// loadDocument returns a command that fetches one document.
func (a *App) loadDocument(id int64) tea.Cmd {
	svc, ctx := a.ports.Document, a.ctx
	return func() tea.Msg {
		doc, err := svc.Get(ctx, id)
		return messages.DocumentLoaded{Document: doc, Err: err}
	}
}

// View implements tea.Model.
// It renders the current view as a string.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}

	switch a.currentView {
	case messages.ViewDocuments:
		return a.documentsView.View()
	case messages.ViewDocDetails:
		return a.docDetailsView.View()
	case messages.ViewHelp:
		return a.viewHelp()
	case messages.ViewSearch:
		return a.searchView.View()
	default:
		return a.searchView.View()
	}
}

// viewHelp renders the help view.
func (a *App) viewHelp() string {
	return a.styles.Title.Render("Help") + `

Global:
  tab         Switch between search and documents
  ?           Toggle this help
  q           Quit (outside the search input)
  ctrl+c      Quit

Search:
  (type)      Enter a question
  enter       Submit search
  ctrl+t      Toggle hybrid keyword reranking
  esc         Back to results

Results:
  j/k, ↑/↓    Navigate results
  enter       Document details
  n           New search
  esc         Edit query

Documents:
  j/k, ↑/↓    Navigate documents
  enter       Document details
  o           Open PDF
  f           Cycle status filter
  r           Reload

Details:
  o           Open PDF
  s           Open source page
  esc         Back

` + a.styles.Help.Render("[esc] back")
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// Query returns the current search query.
func (a *App) Query() string {
	return a.searchView.Query()
}

// Results returns the current search results.
func (a *App) Results() []domain.SearchResult {
	return a.searchView.Results()
}

// SelectedIndex returns the currently selected result index.
func (a *App) SelectedIndex() int {
	return a.searchView.SelectedIndex()
}

// CurrentView returns the current view type.
func (a *App) CurrentView() messages.ViewType {
	return a.currentView
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been initialised.
func (a *App) Ready() bool {
	return a.ready
}

// SetDimensions sets the terminal dimensions on the app and every view.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true
	a.searchView.SetDimensions(width, height)
	a.documentsView.SetDimensions(width, height)
	a.docDetailsView.SetDimensions(width, height)
}
