package tui

import (
	"context"
	"errors"
	"io"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
)

type mockSearchService struct {
	results []domain.SearchResult
}

func (m *mockSearchService) Search(_ context.Context, q domain.SearchQuery) (*domain.SearchResponse, error) {
	return &domain.SearchResponse{
		Query:        q.Text,
		Results:      m.results,
		TotalResults: len(m.results),
		Params:       domain.SearchParams{Limit: q.Limit, Hybrid: q.Hybrid},
	}, nil
}

type mockDocumentService struct {
	docs []domain.Document
}

func (m *mockDocumentService) Get(_ context.Context, id int64) (*domain.Document, error) {
	for i := range m.docs {
		if m.docs[i].ID == id {
			return &m.docs[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockDocumentService) List(context.Context, domain.ListOptions) ([]domain.Document, error) {
	return m.docs, nil
}

func (m *mockDocumentService) OpenPDF(context.Context, int64) (io.ReadCloser, *domain.Document, error) {
	return nil, nil, errors.New("not implemented")
}

func (m *mockDocumentService) Stats(context.Context) (domain.DocumentStats, error) {
	return domain.DocumentStats{Total: len(m.docs)}, nil
}

func (m *mockDocumentService) Reconcile(context.Context) (*driving.ReconcileReport, error) {
	return &driving.ReconcileReport{}, nil
}

func (m *mockDocumentService) IndexInfo(context.Context) (*driving.IndexInfo, error) {
	return &driving.IndexInfo{}, nil
}

func (m *mockDocumentService) Open(context.Context, int64, bool) error {
	return nil
}

func newTestPorts() *Ports {
	return &Ports{
		Search: &mockSearchService{results: []domain.SearchResult{
			{DocumentID: 4, Filename: "report.pdf", ChunkIndex: 1, Text: "numbers", Confidence: 0.8, Score: 0.8},
		}},
		Document: &mockDocumentService{docs: []domain.Document{
			{ID: 4, OriginalFilename: "report.pdf", Status: domain.StatusCompleted, ChunksCount: 2},
		}},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(newTestPorts())
	require.NoError(t, err)
	app.SetDimensions(100, 30)
	return app
}

// send delivers msg and feeds back the app messages its commands
// produce. Component messages such as cursor blinks end the chain.
func send(app *App, msg tea.Msg) {
	for i := 0; i < 10; i++ {
		_, cmd := app.Update(msg)
		if cmd == nil {
			return
		}
		msg = cmd()
		switch msg.(type) {
		case messages.SearchCompleted, messages.DocumentsLoaded, messages.DocumentRequested,
			messages.DocumentLoaded, messages.ViewChanged, messages.StatusMessage, messages.ErrorOccurred:
		default:
			return
		}
	}
}

// typeText types into the focused input. Its blink commands are dropped.
func typeText(app *App, s string) {
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestNewApp_Success(t *testing.T) {
	app, err := NewApp(newTestPorts())

	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, messages.ViewSearch, app.CurrentView())
	assert.False(t, app.Ready())
	assert.Equal(t, "Initialising...", app.View())
}

func TestNewApp_InvalidPorts(t *testing.T) {
	app, err := NewApp(&Ports{Search: &mockSearchService{}})

	assert.ErrorIs(t, err, ErrMissingDocumentService)
	assert.Nil(t, app)
}

func TestApp_WithContext(t *testing.T) {
	app, err := NewApp(newTestPorts())
	require.NoError(t, err)

	assert.Same(t, app, app.WithContext(t.Context()))
}

func TestApp_Init(t *testing.T) {
	app, err := NewApp(newTestPorts())
	require.NoError(t, err)

	assert.NotNil(t, app.Init())
}

func TestApp_Update_WindowSize(t *testing.T) {
	app, err := NewApp(newTestPorts())
	require.NoError(t, err)

	model, cmd := app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	assert.Equal(t, app, model)
	assert.Nil(t, cmd)
	assert.True(t, app.Ready())
}

func TestApp_SearchToDetailsAndBack(t *testing.T) {
	app := newTestApp(t)

	typeText(app, "numbers")
	assert.Equal(t, "numbers", app.Query())
	send(app, key("enter"))
	require.Len(t, app.Results(), 1)
	assert.Equal(t, 0, app.SelectedIndex())

	send(app, key("enter"))
	assert.Equal(t, messages.ViewDocDetails, app.CurrentView())
	assert.Contains(t, app.View(), "report.pdf")

	send(app, key("esc"))
	assert.Equal(t, messages.ViewSearch, app.CurrentView())
	assert.Len(t, app.Results(), 1, "results survive the round trip")
}

func TestApp_TabTogglesDocuments(t *testing.T) {
	app := newTestApp(t)

	send(app, key("tab"))
	assert.Equal(t, messages.ViewDocuments, app.CurrentView())
	assert.Contains(t, app.View(), "report.pdf", "documents load on entry")

	send(app, key("enter"))
	assert.Equal(t, messages.ViewDocDetails, app.CurrentView())

	send(app, key("esc"))
	assert.Equal(t, messages.ViewDocuments, app.CurrentView())

	send(app, key("tab"))
	assert.Equal(t, messages.ViewSearch, app.CurrentView())
}

func TestApp_QuitKeys(t *testing.T) {
	app := newTestApp(t)

	typeText(app, "q")
	assert.Equal(t, "q", app.Query(), "q is typed into the search input")
	assert.Equal(t, messages.ViewSearch, app.CurrentView())

	_, cmd := app.Update(key("ctrl+c"))
	assert.True(t, isQuit(cmd))

	send(app, key("tab"))
	_, cmd = app.Update(key("q"))
	assert.True(t, isQuit(cmd))
}

func TestApp_Help(t *testing.T) {
	app := newTestApp(t)
	send(app, key("tab"))

	send(app, key("?"))
	assert.Equal(t, messages.ViewHelp, app.CurrentView())
	assert.Contains(t, app.View(), "Toggle hybrid keyword reranking")

	send(app, key("esc"))
	assert.Equal(t, messages.ViewDocuments, app.CurrentView())
}

func TestApp_DocumentLoadError(t *testing.T) {
	app := newTestApp(t)

	send(app, messages.DocumentRequested{ID: 99, From: messages.ViewSearch})

	assert.Equal(t, messages.ViewSearch, app.CurrentView())
	assert.ErrorIs(t, app.Err(), domain.ErrNotFound)
}

func TestApp_QuitMessage(t *testing.T) {
	app := newTestApp(t)

	_, cmd := app.Update(messages.Quit{})

	assert.True(t, isQuit(cmd))
}
