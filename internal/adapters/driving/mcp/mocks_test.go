package mcp

import (
	"context"
	"io"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	response *domain.SearchResponse
	err      error
	query    domain.SearchQuery
}

func (m *mockSearchService) Search(_ context.Context, q domain.SearchQuery) (*domain.SearchResponse, error) {
	m.query = q
	if m.err != nil {
		return nil, m.err
	}
	if m.response == nil {
		return &domain.SearchResponse{Query: q.Text, Results: []domain.SearchResult{}}, nil
	}
	return m.response, nil
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	document *domain.Document
	err      error
	url      string
	cookies  domain.Secret
}

func (m *mockIngestionService) IngestPDF(_ context.Context, _ string, _ []byte) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockIngestionService) IngestURL(_ context.Context, url string, cookies domain.Secret) (*domain.Document, error) {
	m.url = url
	m.cookies = cookies
	return m.document, m.err
}

func (m *mockIngestionService) Reingest(_ context.Context, _ int64, _ domain.Secret) (*domain.Document, error) {
	return m.document, m.err
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	err       error
	gotID     int64
	listOpts  domain.ListOptions
}

func (m *mockDocumentService) Get(_ context.Context, id int64) (*domain.Document, error) {
	m.gotID = id
	return m.document, m.err
}

func (m *mockDocumentService) List(_ context.Context, opts domain.ListOptions) ([]domain.Document, error) {
	m.listOpts = opts
	return m.documents, m.err
}

func (m *mockDocumentService) OpenPDF(_ context.Context, _ int64) (io.ReadCloser, *domain.Document, error) {
	return nil, m.document, m.err
}

func (m *mockDocumentService) Stats(_ context.Context) (domain.DocumentStats, error) {
	return domain.DocumentStats{}, m.err
}

func (m *mockDocumentService) Reconcile(_ context.Context) (*driving.ReconcileReport, error) {
	return &driving.ReconcileReport{}, m.err
}

func (m *mockDocumentService) IndexInfo(_ context.Context) (*driving.IndexInfo, error) {
	return &driving.IndexInfo{}, m.err
}

func (m *mockDocumentService) Open(_ context.Context, _ int64, _ bool) error {
	return m.err
}
