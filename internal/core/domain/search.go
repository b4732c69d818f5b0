package domain

import "time"

// MaxSearchLimit bounds the number of results a single query may request.
const MaxSearchLimit = 100

// SearchQuery configures a similarity search.
type SearchQuery struct {
	// Text is the natural-language query.
	Text string

	// Limit is the maximum number of results.
	Limit int

	// MinConfidence excludes hits scoring below it before the limit is applied.
	// Nil means no threshold.
	MinConfidence *float64

	// Hybrid reorders semantic hits with a keyword-overlap blend.
	// Confidence is unaffected.
	Hybrid bool
}

// SearchResult represents a single search hit.
type SearchResult struct {
	DocumentID int64     `json:"document_id"`
	Filename   string    `json:"filename"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	SourceURL  string    `json:"source_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	// Confidence is the cosine similarity in [0,1].
	Confidence float64 `json:"confidence"`

	// Score orders the results. It equals Confidence unless hybrid
	// reranking was requested.
	Score float64 `json:"score"`

	// SemanticScore and KeywordScore are the two parts of the hybrid
	// blend. Both are zero unless hybrid reranking was requested.
	SemanticScore float64 `json:"semantic_score,omitempty"`
	KeywordScore  float64 `json:"keyword_score,omitempty"`
}

// SearchParams echoes the parameters a search ran with.
type SearchParams struct {
	Limit         int      `json:"limit"`
	MinConfidence *float64 `json:"min_confidence"`
	Hybrid        bool     `json:"hybrid"`
}

// SearchResponse is the shaped result of a search.
type SearchResponse struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
	Params       SearchParams   `json:"search_params"`
}

// SearchLogEntry records an executed query for analytics.
type SearchLogEntry struct {
	ID            int64
	Query         string
	ResultsCount  int
	Limit         int
	MinConfidence *float64
	Hybrid        bool
	CreatedAt     time.Time
}
