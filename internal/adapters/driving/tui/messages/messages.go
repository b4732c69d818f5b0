// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// SearchCompleted carries a search response back to the model.
type SearchCompleted struct {
	Response *domain.SearchResponse
	Err      error
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewSearch is the search input and results view.
	ViewSearch ViewType = iota
	// ViewDocuments lists ingested documents.
	ViewDocuments
	// ViewDocDetails shows the metadata of one document.
	ViewDocDetails
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewSearch:
		return "search"
	case ViewDocuments:
		return "documents"
	case ViewDocDetails:
		return "doc_details"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// StatusMessage is a transient note for the active view's status line.
type StatusMessage struct {
	Text string
}

// Quit signals the application should exit.
type Quit struct{}

// DocumentsLoaded carries a page of documents and the status totals.
type DocumentsLoaded struct {
	Documents []domain.Document
	Stats     domain.DocumentStats
	Err       error
}

// DocumentRequested asks the app to load and show one document.
// From records the view to return to.
type DocumentRequested struct {
	ID   int64
	From ViewType
}

// DocumentLoaded carries one document for the details view.
type DocumentLoaded struct {
	Document *domain.Document
	Err      error
}
