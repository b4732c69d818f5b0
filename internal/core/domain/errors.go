package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidQuery indicates a search request that cannot be executed.
	// It is raised before any embedding work is done.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidTransition indicates a vectorization status change that
	// the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrExtraction is the parent of every ExtractionError.
	ErrExtraction = errors.New("extraction failed")

	// ErrChunking indicates the chunker could not produce segments.
	ErrChunking = errors.New("chunking failed")

	// ErrEmbedding indicates the embedding model failed at runtime.
	ErrEmbedding = errors.New("embedding failed")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexUnavailable indicates a transport or availability failure
	// in the vector engine.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrRendererUnavailable indicates the headless browser could not be
	// started. It is not a property of the page, so it is never retried.
	ErrRendererUnavailable = errors.New("browser unavailable")

	// ErrSchemaMismatch indicates the existing collection was created with a
	// different vector dimension than the active embedding model.
	ErrSchemaMismatch = errors.New("vector collection schema mismatch")

	// ErrCountMismatch indicates the index holds a different number of
	// points for a document than the chunks written for it.
	ErrCountMismatch = errors.New("indexed point count does not match chunk count")
)

// ExtractionReason classifies why content extraction failed.
type ExtractionReason string

const (
	// ReasonEmptyText means the source produced no extractable characters.
	ReasonEmptyText ExtractionReason = "EMPTY_TEXT"

	// ReasonFetchTimeout means navigation or rendering exceeded its deadline.
	ReasonFetchTimeout ExtractionReason = "FETCH_TIMEOUT"

	// ReasonHTTPError means the page could not be fetched or answered with an error status.
	ReasonHTTPError ExtractionReason = "HTTP_ERROR"

	// ReasonAuthExpired means the session credentials were rejected and
	// the caller should refresh them rather than retry.
	ReasonAuthExpired ExtractionReason = "AUTH_EXPIRED"
)

// ExtractionError reports a failed extraction with its reason.
// PDF carries any artifact rendered before the failure so the caller
// can persist it.
type ExtractionError struct {
	Reason     ExtractionReason
	URL        string
	StatusCode int
	PDF        []byte
	Err        error
}

// NewExtractionError builds an ExtractionError for the given reason.
func NewExtractionError(reason ExtractionReason, url string, err error) *ExtractionError {
	return &ExtractionError{Reason: reason, URL: url, Err: err}
}

func (e *ExtractionError) Error() string {
	msg := "extraction failed: " + string(e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.URL != "" {
		msg += " for " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is reports ErrExtraction as a match so callers can test the category.
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// Retryable reports whether the failure is transient. Page loads are
// flaky, so timeouts and server-side or transport errors qualify.
func (e *ExtractionError) Retryable() bool {
	switch e.Reason {
	case ReasonFetchTimeout:
		return true
	case ReasonHTTPError:
		return e.StatusCode == 0 || e.StatusCode >= 500
	default:
		return false
	}
}

// ExtractionReasonOf returns the reason of the first ExtractionError in
// err's chain.
func ExtractionReasonOf(err error) (ExtractionReason, bool) {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Reason, true
	}
	return "", false
}

// ChunkingReason classifies chunker failures.
type ChunkingReason string

// ReasonEmptyInput means there was no text to split.
const ReasonEmptyInput ChunkingReason = "EMPTY_INPUT"

// ChunkingError reports that no chunks could be produced.
type ChunkingError struct {
	Reason ChunkingReason
}

func (e *ChunkingError) Error() string {
	return "chunking failed: " + string(e.Reason)
}

// Is reports ErrChunking as a match.
func (e *ChunkingError) Is(target error) bool {
	return target == ErrChunking
}
