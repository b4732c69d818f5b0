// Package sqlite provides a SQLite-based implementation of the metadata
// store ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements two store interfaces
// through a single database connection:
//
//   - DocumentStore: document records and their vectorization status
//   - SearchLogStore: executed search queries
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Status transitions
//
// Completing or failing a document is a single conditional UPDATE that only
// matches rows still pending, so concurrent writers cannot both win.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha-kb/data/metadata.db
package sqlite
