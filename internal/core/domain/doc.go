// Package domain defines the core business entities for sercha-kb.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested source with its vectorization status
//   - Chunk: A text segment, the unit of embedding and indexing
//   - Source: What an extractor should read (PDF path, URL, cookies)
//   - SearchResult: An ephemeral similarity hit
//
// # Status State Machine
//
// A Document starts pending and ends either completed or failed.
// Those are the only two legal transitions; see VectorizationStatus.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
