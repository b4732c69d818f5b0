package mcp

import (
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides search capabilities.
	Search driving.SearchService

	// Ingest adds web pages. Without it the ingest_url tool is not offered.
	Ingest driving.IngestionService

	// Document exposes document records. Without it the resources are
	// not offered.
	Document driving.DocumentService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
