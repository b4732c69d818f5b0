package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// defaultSearchLimit matches the REST default.
const defaultSearchLimit = 5

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query         string   `json:"query" jsonschema:"the search query to find passages"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 5)"`
	MinConfidence *float64 `json:"min_confidence,omitempty" jsonschema:"drop results below this similarity, between 0 and 1"`
	Hybrid        bool     `json:"hybrid,omitempty" jsonschema:"rerank results by keyword overlap"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	DocumentID int64   `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	SourceURL  string  `json:"source_url,omitempty"`
	Confidence float64 `json:"confidence"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// IngestURLInput is the input schema for the ingest_url tool.
type IngestURLInput struct {
	URL     string `json:"url" jsonschema:"the page to render and index"`
	Cookies string `json:"cookies,omitempty" jsonschema:"session cookies for gated profile pages, as name=value pairs or a JSON array"`
}

// IngestURLOutput is the output schema for the ingest_url tool.
type IngestURLOutput struct {
	DocumentID  int64     `json:"document_id"`
	Filename    string    `json:"filename"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	ChunksCount int       `json:"chunks_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search the knowledge base for passages similar to the query",
	}, s.handleSearch)

	if s.ports.Ingest != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ingest_url",
			Description: "Render a web page to PDF and add its text to the knowledge base",
		}, s.handleIngestURL)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	resp, err := s.ports.Search.Search(ctx, domain.SearchQuery{
		Text:          input.Query,
		Limit:         limit,
		MinConfidence: input.MinConfidence,
		Hybrid:        input.Hybrid,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(resp.Results)),
		Count:   len(resp.Results),
	}
	for i := range resp.Results {
		r := &resp.Results[i]
		output.Results[i] = SearchResultOutput{
			DocumentID: r.DocumentID,
			Filename:   r.Filename,
			ChunkIndex: r.ChunkIndex,
			SourceURL:  r.SourceURL,
			Confidence: r.Confidence,
			Score:      r.Score,
			Content:    r.Text,
		}
	}

	return nil, output, nil
}

// handleIngestURL handles the ingest_url tool invocation. A document
// that was created but failed is reported, not returned as an error.
func (s *Server) handleIngestURL(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IngestURLInput,
) (*mcp.CallToolResult, IngestURLOutput, error) {
	doc, err := s.ports.Ingest.IngestURL(ctx, input.URL, domain.NewSecret(input.Cookies))
	if doc == nil {
		return nil, IngestURLOutput{}, err
	}

	return nil, IngestURLOutput{
		DocumentID:  doc.ID,
		Filename:    doc.Filename,
		Status:      string(doc.Status),
		Error:       doc.StatusError,
		ChunksCount: doc.ChunksCount,
		CreatedAt:   doc.CreatedAt,
	}, nil
}
