package driven

import "github.com/custodia-labs/sercha-kb/internal/core/domain"

// Chunker splits extracted text into ordered, overlapping segments.
// Implementations must be deterministic.
type Chunker interface {
	// Chunk splits text for the given document. Empty input returns
	// a *domain.ChunkingError.
	Chunk(documentID int64, text string) ([]domain.Chunk, error)
}

// ChunkerRegistry selects the chunker for a source kind. Every kind
// resolves to some chunker.
type ChunkerRegistry interface {
	For(kind domain.SourceKind) Chunker
}
