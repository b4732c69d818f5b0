// Package mcp provides an MCP (Model Context Protocol) server adapter for
// sercha-kb. It lets AI assistants search the knowledge base, add web
// pages to it and read document records.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
