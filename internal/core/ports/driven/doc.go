// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Extractor / ExtractorRegistry: Source to text and PDF
//   - Renderer: Headless browser used by the web extractors
//   - Chunker: Text to ordered overlapping chunks
//   - EmbeddingService: Text to fixed-dimension vectors
//   - VectorIndex: Chunk vector storage and similarity search (Qdrant)
//   - DocumentStore: Document record persistence (SQLite)
//   - FileStore: PDF artifact retention
//
// # Optional Interfaces
//
//   - SearchLogStore: Query analytics. Search works without it.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, extractor, or postprocessor package
package driven
