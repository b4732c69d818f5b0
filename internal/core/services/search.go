package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-kb/internal/logger"
	"github.com/custodia-labs/sercha-kb/internal/telemetry"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// minHybridCandidates is the smallest candidate pool fetched for reranking.
const minHybridCandidates = 20

// hybridCandidateFactor widens the candidate pool for reranking.
const hybridCandidateFactor = 4

// SearchService runs similarity search over the indexed chunks.
type SearchService struct {
	embedder driven.EmbeddingService
	vectors  driven.VectorIndex
	searches driven.SearchLogStore
	now      func() time.Time
}

// NewSearchService creates a new search service.
// The searches parameter is optional (can be nil).
func NewSearchService(
	embedder driven.EmbeddingService,
	vectors driven.VectorIndex,
	searches driven.SearchLogStore,
) *SearchService {
	return &SearchService{
		embedder: embedder,
		vectors:  vectors,
		searches: searches,
		now:      time.Now,
	}
}

// Search embeds the query and returns the closest chunks.
func (s *SearchService) Search(ctx context.Context, query domain.SearchQuery) (resp *domain.SearchResponse, err error) {
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}

	logger.Section("Search Execution")
	logger.Debug("Query: %q, limit: %d, hybrid: %t", query.Text, query.Limit, query.Hybrid)

	ctx, span := telemetry.StartSearchSpan(ctx, query.Limit, query.Hybrid)
	defer func() { telemetry.End(span, err) }()

	vector, err := s.embedder.Embed(ctx, query.Text)
	if err != nil {
		logger.Warn("Query embedding failed: %v", err)
		return nil, fmt.Errorf("embed query: %w", err)
	}

	topK := query.Limit
	if query.Hybrid {
		topK = max(query.Limit*hybridCandidateFactor, minHybridCandidates)
	}
	logger.Debug("Vector search: top_k=%d", topK)

	hits, err := s.vectors.Search(ctx, vector, topK, query.MinConfidence)
	if err != nil {
		logger.Warn("Vector search failed: %v", err)
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Raw results: %d hits", len(hits))

	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, toResult(h))
	}
	if query.Hybrid {
		results = rerank(query.Text, results, query.Limit)
	} else {
		results = truncate(results, query.Limit)
	}
	logger.Info("Final results: %d", len(results))

	s.record(ctx, query, len(results))

	return &domain.SearchResponse{
		Query:        query.Text,
		Results:      results,
		TotalResults: len(results),
		Params: domain.SearchParams{
			Limit:         query.Limit,
			MinConfidence: query.MinConfidence,
			Hybrid:        query.Hybrid,
		},
	}, nil
}

// record writes the search log entry. Failures never fail the search.
func (s *SearchService) record(ctx context.Context, query domain.SearchQuery, n int) {
	if s.searches == nil {
		return
	}
	entry := domain.SearchLogEntry{
		Query:         query.Text,
		ResultsCount:  n,
		Limit:         query.Limit,
		MinConfidence: query.MinConfidence,
		Hybrid:        query.Hybrid,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.searches.Record(ctx, entry); err != nil {
		logger.Warn("Failed to record search: %v", err)
	}
}

// ValidateQuery rejects queries that cannot run. It does no I/O.
func ValidateQuery(q domain.SearchQuery) error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: query text is empty", domain.ErrInvalidQuery)
	}
	if q.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", domain.ErrInvalidQuery, q.Limit)
	}
	if q.Limit > domain.MaxSearchLimit {
		return fmt.Errorf("%w: limit must be at most %d, got %d", domain.ErrInvalidQuery, domain.MaxSearchLimit, q.Limit)
	}
	if c := q.MinConfidence; c != nil && (math.IsNaN(*c) || *c < 0 || *c > 1) {
		return fmt.Errorf("%w: min confidence must be in [0, 1], got %v", domain.ErrInvalidQuery, *c)
	}
	return nil
}

func toResult(h domain.ScoredPoint) domain.SearchResult {
	return domain.SearchResult{
		DocumentID: h.Payload.DocumentID,
		Filename:   h.Payload.Filename,
		ChunkIndex: h.Payload.ChunkIndex,
		Text:       h.Payload.Text,
		SourceURL:  h.Payload.SourceURL,
		CreatedAt:  h.Payload.CreatedAt,
		Confidence: h.Score,
		Score:      h.Score,
	}
}
