package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		mockSearch := &mockSearchService{
			response: &domain.SearchResponse{
				Query: "test",
				Results: []domain.SearchResult{
					{
						DocumentID: 7,
						Filename:   "20240101_120000_abcd1234_report.pdf",
						ChunkIndex: 2,
						Text:       "This is the content",
						SourceURL:  "https://example.com/report",
						Confidence: 0.95,
						Score:      0.91,
					},
				},
				TotalResults: 1,
			},
		}

		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		input := SearchInput{Query: "test", Limit: 10}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		got := output.Results[0]
		assert.Equal(t, int64(7), got.DocumentID)
		assert.Equal(t, "20240101_120000_abcd1234_report.pdf", got.Filename)
		assert.Equal(t, 2, got.ChunkIndex)
		assert.Equal(t, "https://example.com/report", got.SourceURL)
		assert.Equal(t, 0.95, got.Confidence)
		assert.Equal(t, 0.91, got.Score)
		assert.Equal(t, "This is the content", got.Content)
	})

	t.Run("default limit is 5", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Equal(t, 5, mockSearch.query.Limit)
	})

	t.Run("passes confidence and hybrid", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		c := 0.4
		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test", Limit: 3, MinConfidence: &c, Hybrid: true})

		require.NoError(t, err)
		require.NotNil(t, mockSearch.query.MinConfidence)
		assert.Equal(t, 0.4, *mockSearch.query.MinConfidence)
		assert.True(t, mockSearch.query.Hybrid)
		assert.Equal(t, 3, mockSearch.query.Limit)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		mockSearch := &mockSearchService{
			err: errors.New("search failed"),
		}

		server, err := NewServer(&Ports{Search: mockSearch})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleIngestURL(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("returns completed document", func(t *testing.T) {
		mockIngest := &mockIngestionService{
			document: &domain.Document{
				ID:          3,
				Filename:    "20240501_090000_0a1b2c3d_article.pdf",
				Status:      domain.StatusCompleted,
				ChunksCount: 4,
				CreatedAt:   created,
			},
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Ingest: mockIngest})
		require.NoError(t, err)

		_, output, err := server.handleIngestURL(ctx, nil, IngestURLInput{
			URL:     "https://www.linkedin.com/in/someone",
			Cookies: "li_at=secret",
		})

		require.NoError(t, err)
		assert.Equal(t, int64(3), output.DocumentID)
		assert.Equal(t, "completed", output.Status)
		assert.Equal(t, 4, output.ChunksCount)
		assert.Equal(t, created, output.CreatedAt)
		assert.Equal(t, "https://www.linkedin.com/in/someone", mockIngest.url)
		assert.Equal(t, "li_at=secret", mockIngest.cookies.Reveal())
	})

	t.Run("failed document is reported, not returned as error", func(t *testing.T) {
		mockIngest := &mockIngestionService{
			document: &domain.Document{
				ID:          4,
				Status:      domain.StatusFailed,
				StatusError: "AUTH_EXPIRED: session cookies were rejected",
			},
			err: domain.NewExtractionError(domain.ReasonAuthExpired, "https://www.linkedin.com/in/x", nil),
		}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Ingest: mockIngest})
		require.NoError(t, err)

		_, output, err := server.handleIngestURL(ctx, nil, IngestURLInput{URL: "https://www.linkedin.com/in/x"})

		require.NoError(t, err)
		assert.Equal(t, "failed", output.Status)
		assert.Contains(t, output.Error, "AUTH_EXPIRED")
	})

	t.Run("error without document is returned", func(t *testing.T) {
		mockIngest := &mockIngestionService{err: domain.ErrInvalidInput}
		server, err := NewServer(&Ports{Search: &mockSearchService{}, Ingest: mockIngest})
		require.NoError(t, err)

		_, _, err = server.handleIngestURL(ctx, nil, IngestURLInput{URL: "ftp://nope"})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
