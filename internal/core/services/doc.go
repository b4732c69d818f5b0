// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
//   - IngestionService: extract, store, chunk, embed and index one source
//   - SearchService: similarity search with optional keyword reranking
//   - DocumentService: read-only document access and index reconciliation
//   - Scheduler: periodic reconciliation while a server runs
//
// Services import only domain, ports, logging and tracing.
package services
