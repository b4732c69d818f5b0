package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

func TestExtractDocumentID(t *testing.T) {
	tests := []struct {
		name   string
		uri    string
		wantID int64
		wantOK bool
	}{
		{name: "valid document URI", uri: "kb://documents/42", wantID: 42, wantOK: true},
		{name: "invalid prefix", uri: "file://documents/42"},
		{name: "non-numeric id", uri: "kb://documents/doc-1"},
		{name: "zero id", uri: "kb://documents/0"},
		{name: "empty URI", uri: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := extractDocumentID(tt.uri)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

// Helper to create a ReadResourceRequest with the given URI.
func makeReadResourceRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{
		Params: &mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func testDocument(id int64) domain.Document {
	return domain.Document{
		ID:          id,
		Filename:    fmt.Sprintf("20240101_000000_0000000%d_doc.pdf", id),
		SourceKind:  domain.SourcePDF,
		Status:      domain.StatusCompleted,
		ChunksCount: 3,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestServer_handleDocumentsResource(t *testing.T) {
	ctx := context.Background()

	t.Run("returns documents successfully", func(t *testing.T) {
		mockDoc := &mockDocumentService{
			documents: []domain.Document{testDocument(1), testDocument(2)},
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Document: mockDoc})
		require.NoError(t, err)

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("kb://documents"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "application/json", result.Contents[0].MIMEType)
		assert.Contains(t, result.Contents[0].Text, `"id": 1`)
		assert.Contains(t, result.Contents[0].Text, `"id": 2`)
		assert.Contains(t, result.Contents[0].Text, `"status": "completed"`)
		assert.Equal(t, resourceListLimit, mockDoc.listOpts.Limit)
	})

	t.Run("returns error on list failure", func(t *testing.T) {
		mockDoc := &mockDocumentService{err: errors.New("storage error")}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Document: mockDoc})
		require.NoError(t, err)

		_, err = server.handleDocumentsResource(ctx, makeReadResourceRequest("kb://documents"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "listing documents")
	})

	t.Run("handles empty document list", func(t *testing.T) {
		mockDoc := &mockDocumentService{documents: []domain.Document{}}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Document: mockDoc})
		require.NoError(t, err)

		result, err := server.handleDocumentsResource(ctx, makeReadResourceRequest("kb://documents"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, "[]", result.Contents[0].Text)
	})
}

func TestServer_handleDocumentResource(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid URI returns not found", func(t *testing.T) {
		mockDoc := &mockDocumentService{}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Document: mockDoc})
		require.NoError(t, err)

		_, err = server.handleDocumentResource(ctx, makeReadResourceRequest("kb://invalid/uri"))

		require.Error(t, err)
	})

	t.Run("returns document successfully", func(t *testing.T) {
		doc := testDocument(9)
		doc.SourceKind = domain.SourceWeb
		doc.SourceURL = "https://example.com/a"
		mockDoc := &mockDocumentService{document: &doc}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Document: mockDoc})
		require.NoError(t, err)

		result, err := server.handleDocumentResource(ctx, makeReadResourceRequest("kb://documents/9"))

		require.NoError(t, err)
		require.Len(t, result.Contents, 1)
		assert.Equal(t, int64(9), mockDoc.gotID)
		assert.Contains(t, result.Contents[0].Text, `"source_kind": "web"`)
		assert.Contains(t, result.Contents[0].Text, `"source_url": "https://example.com/a"`)
		assert.Contains(t, result.Contents[0].Text, `"created_at": "2024-01-01T00:00:00Z"`)
	})

	t.Run("missing document returns not found", func(t *testing.T) {
		mockDoc := &mockDocumentService{err: fmt.Errorf("document 5: %w", domain.ErrNotFound)}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Document: mockDoc})
		require.NoError(t, err)

		_, err = server.handleDocumentResource(ctx, makeReadResourceRequest("kb://documents/5"))

		require.Error(t, err)
		assert.NotContains(t, err.Error(), "getting document")
	})

	t.Run("returns error on get failure", func(t *testing.T) {
		mockDoc := &mockDocumentService{err: errors.New("database locked")}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Document: mockDoc})
		require.NoError(t, err)

		_, err = server.handleDocumentResource(ctx, makeReadResourceRequest("kb://documents/5"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting document")
	})
}
