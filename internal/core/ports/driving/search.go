package driving

import (
	"context"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search runs a similarity search. An empty query or a non-positive
	// limit fails with domain.ErrInvalidQuery before any embedding call.
	Search(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error)
}
