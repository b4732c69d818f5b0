package httpapi

import (
	"bytes"
	"context"
	"io"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
)

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	document *domain.Document
	err      error

	filename string
	data     []byte
	url      string
	cookies  domain.Secret
	id       int64
}

func (m *mockIngestionService) IngestPDF(_ context.Context, filename string, data []byte) (*domain.Document, error) {
	m.filename = filename
	m.data = data
	return m.document, m.err
}

func (m *mockIngestionService) IngestURL(_ context.Context, url string, cookies domain.Secret) (*domain.Document, error) {
	m.url = url
	m.cookies = cookies
	return m.document, m.err
}

func (m *mockIngestionService) Reingest(_ context.Context, id int64, cookies domain.Secret) (*domain.Document, error) {
	m.id = id
	m.cookies = cookies
	return m.document, m.err
}

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
	return m.response, nil
}

// mockDocumentService is a mock implementation of driving.DocumentService.
type mockDocumentService struct {
	documents []domain.Document
	document  *domain.Document
	pdf       []byte
	info      *driving.IndexInfo
	err       error

	gotID    int64
	listOpts domain.ListOptions
}

func (m *mockDocumentService) Get(_ context.Context, id int64) (*domain.Document, error) {
	m.gotID = id
	return m.document, m.err
}

func (m *mockDocumentService) List(_ context.Context, opts domain.ListOptions) ([]domain.Document, error) {
	m.listOpts = opts
	return m.documents, m.err
}

func (m *mockDocumentService) OpenPDF(_ context.Context, id int64) (io.ReadCloser, *domain.Document, error) {
	m.gotID = id
	if m.err != nil {
		return nil, nil, m.err
	}
	return io.NopCloser(bytes.NewReader(m.pdf)), m.document, nil
}

func (m *mockDocumentService) Stats(_ context.Context) (domain.DocumentStats, error) {
	return domain.DocumentStats{}, m.err
}

func (m *mockDocumentService) Reconcile(_ context.Context) (*driving.ReconcileReport, error) {
	return &driving.ReconcileReport{}, m.err
}

func (m *mockDocumentService) IndexInfo(_ context.Context) (*driving.IndexInfo, error) {
	return m.info, m.err
}

func (m *mockDocumentService) Open(_ context.Context, _ int64, _ bool) error {
	return m.err
}
