package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for knowledge base resources.
	uriScheme = "kb://"

	// resourceListLimit caps the documents listed at once.
	resourceListLimit = 100
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	if s.ports.Document == nil {
		return
	}

	// Static resource for listing documents.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "documents",
		Name:        "documents",
		Description: "The most recently ingested documents",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	// Template for a single document record.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "documents/{documentId}",
		Name:        "document",
		Description: "Metadata and indexing status of a specific document",
		MIMEType:    "application/json",
	}, s.handleDocumentResource)
}

// docInfo is the resource view of a document.
type docInfo struct {
	ID          int64  `json:"id"`
	Filename    string `json:"filename"`
	SourceKind  string `json:"source_kind"`
	SourceURL   string `json:"source_url,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	ChunksCount int    `json:"chunks_count"`
	CreatedAt   string `json:"created_at"`
}

func toDocInfo(d *domain.Document) docInfo {
	return docInfo{
		ID:          d.ID,
		Filename:    d.Filename,
		SourceKind:  string(d.SourceKind),
		SourceURL:   d.SourceURL,
		Status:      string(d.Status),
		Error:       d.StatusError,
		ChunksCount: d.ChunksCount,
		CreatedAt:   d.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// handleDocumentsResource returns the newest documents.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	docs, err := s.ports.Document.List(ctx, domain.ListOptions{Limit: resourceListLimit})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	infos := make([]docInfo, len(docs))
	for i := range docs {
		infos[i] = toDocInfo(&docs[i])
	}

	return jsonResult(req.Params.URI, infos)
}

// handleDocumentResource returns one document record.
func (s *Server) handleDocumentResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract documentId from URI: kb://documents/{documentId}
	id, ok := extractDocumentID(req.Params.URI)
	if !ok {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	doc, err := s.ports.Document.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}

	return jsonResult(req.Params.URI, toDocInfo(doc))
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractDocumentID extracts the document ID from a URI like kb://documents/42.
func extractDocumentID(uri string) (int64, bool) {
	const prefix = uriScheme + "documents/"

	if !strings.HasPrefix(uri, prefix) {
		return 0, false
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(uri, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
