package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
)

// timeLayout is the stored timestamp format. It sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a SQLite-based storage that provides access to the metadata
// store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sercha-kb/data/metadata.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha-kb", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "metadata.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{db: s.db}
}

// SearchLogStore returns a SearchLogStore interface backed by this store.
func (s *Store) SearchLogStore() driven.SearchLogStore {
	return &searchLogStore{db: s.db}
}

// migrate runs all pending migrations, recording each version.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	db *sql.DB
}

const documentColumns = `id, filename, original_filename, file_path, file_size, content_type,
	source_kind, source_url, created_at, vectorization_status, vectorization_error, chunks_count`

// Create inserts a pending document and assigns its ID.
func (s *documentStore) Create(ctx context.Context, doc *domain.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.ContentType == "" {
		doc.ContentType = domain.PDFContentType
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (filename, original_filename, file_path, file_size, content_type,
			source_kind, source_url, created_at, vectorization_status, chunks_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending', 0)
	`, doc.Filename, doc.OriginalFilename, doc.FilePath, doc.FileSize, doc.ContentType,
		string(doc.SourceKind), nullString(doc.SourceURL), doc.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading document id: %w", err)
	}
	doc.ID = id
	doc.Status = domain.StatusPending
	doc.StatusError = ""
	doc.ChunksCount = 0
	return nil
}

// Get retrieves a document by ID.
func (s *documentStore) Get(ctx context.Context, id int64) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document %d: %w", id, err)
	}
	return doc, nil
}

// List returns documents newest first.
func (s *documentStore) List(ctx context.Context, opts domain.ListOptions) ([]domain.Document, error) {
	query := "SELECT " + documentColumns + " FROM documents"
	var args []any
	if opts.Status != "" {
		query += " WHERE vectorization_status = ?"
		args = append(args, string(opts.Status))
	}
	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// Complete moves a pending document to completed with its chunk count.
func (s *documentStore) Complete(ctx context.Context, id int64, chunksCount int) error {
	if chunksCount <= 0 {
		return fmt.Errorf("%w: completed document needs chunks, got %d", domain.ErrInvalidInput, chunksCount)
	}
	return s.transition(ctx, id, domain.StatusCompleted, `
		UPDATE documents
		SET vectorization_status = 'completed', vectorization_error = NULL, chunks_count = ?
		WHERE id = ? AND vectorization_status = 'pending'
	`, chunksCount, id)
}

// Fail moves a pending document to failed with a reason.
func (s *documentStore) Fail(ctx context.Context, id int64, reason string) error {
	return s.transition(ctx, id, domain.StatusFailed, `
		UPDATE documents
		SET vectorization_status = 'failed', vectorization_error = ?, chunks_count = 0
		WHERE id = ? AND vectorization_status = 'pending'
	`, reason, id)
}

// ResetForReingest returns a terminal document to pending.
func (s *documentStore) ResetForReingest(ctx context.Context, id int64) error {
	return s.transition(ctx, id, domain.StatusPending, `
		UPDATE documents
		SET vectorization_status = 'pending', vectorization_error = NULL, chunks_count = 0
		WHERE id = ? AND vectorization_status IN ('completed', 'failed')
	`, id)
}

// transition runs a conditional update. Zero affected rows means the row
// is absent or not in a state the update accepts.
func (s *documentStore) transition(ctx context.Context, id int64, to domain.VectorizationStatus, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating document %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating document %d: %w", id, err)
	}
	if n == 1 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, "SELECT vectorization_status FROM documents WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading document %d: %w", id, err)
	}
	return fmt.Errorf("%w: %s -> %s for document %d", domain.ErrInvalidTransition, current, to, id)
}

// Stats counts documents per status.
func (s *documentStore) Stats(ctx context.Context) (domain.DocumentStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vectorization_status, COUNT(*), COALESCE(SUM(chunks_count), 0)
		FROM documents GROUP BY vectorization_status
	`)
	if err != nil {
		return domain.DocumentStats{}, fmt.Errorf("counting documents: %w", err)
	}
	defer rows.Close()

	var stats domain.DocumentStats
	for rows.Next() {
		var status string
		var count, chunks int
		if err := rows.Scan(&status, &count, &chunks); err != nil {
			return domain.DocumentStats{}, fmt.Errorf("scanning stats: %w", err)
		}
		stats.Total += count
		stats.Chunks += chunks
		switch domain.VectorizationStatus(status) {
		case domain.StatusPending:
			stats.Pending = count
		case domain.StatusCompleted:
			stats.Completed = count
		case domain.StatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.Document, error) {
	var (
		doc       domain.Document
		kind      string
		sourceURL sql.NullString
		createdAt string
		status    string
		statusErr sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.Filename, &doc.OriginalFilename, &doc.FilePath, &doc.FileSize,
		&doc.ContentType, &kind, &sourceURL, &createdAt, &status, &statusErr, &doc.ChunksCount)
	if err != nil {
		return nil, err
	}

	doc.SourceKind = domain.SourceKind(kind)
	doc.SourceURL = sourceURL.String
	doc.StatusError = statusErr.String
	if doc.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	if doc.Status, err = domain.ParseStatus(status); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ==================== Search Log Store ====================

// searchLogStore implements driven.SearchLogStore.
type searchLogStore struct {
	db *sql.DB
}

// Record stores an entry.
func (s *searchLogStore) Record(ctx context.Context, entry domain.SearchLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	var minConf sql.NullFloat64
	if entry.MinConfidence != nil {
		minConf = sql.NullFloat64{Float64: *entry.MinConfidence, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_queries (query_text, results_count, result_limit, min_confidence, hybrid, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.Query, entry.ResultsCount, entry.Limit, minConf, boolToInt(entry.Hybrid),
		entry.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("recording search: %w", err)
	}
	return nil
}

// Recent returns the latest n entries, newest first.
func (s *searchLogStore) Recent(ctx context.Context, n int) ([]domain.SearchLogEntry, error) {
	if n <= 0 {
		n = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query_text, results_count, result_limit, min_confidence, hybrid, created_at
		FROM search_queries ORDER BY id DESC LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("listing searches: %w", err)
	}
	defer rows.Close()

	entries := []domain.SearchLogEntry{}
	for rows.Next() {
		var (
			e         domain.SearchLogEntry
			minConf   sql.NullFloat64
			hybrid    int
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Query, &e.ResultsCount, &e.Limit, &minConf, &hybrid, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning search: %w", err)
		}
		if minConf.Valid {
			v := minConf.Float64
			e.MinConfidence = &v
		}
		e.Hybrid = hybrid != 0
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ==================== Helper Functions ====================

// nullString converts an empty string to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
