package domain

import (
	"fmt"
	"time"
)

// VectorizationStatus tracks the ingestion pipeline outcome of a document.
// The string values are a stable external contract.
type VectorizationStatus string

const (
	// StatusPending is the initial state while the pipeline runs.
	StatusPending VectorizationStatus = "pending"

	// StatusCompleted means every chunk is indexed and counted.
	StatusCompleted VectorizationStatus = "completed"

	// StatusFailed means the pipeline stopped; the PDF remains stored.
	StatusFailed VectorizationStatus = "failed"
)

// Valid reports whether s is one of the three known states.
func (s VectorizationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s VectorizationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether the state machine allows s -> to.
// Only pending -> completed and pending -> failed are legal.
func (s VectorizationStatus) CanTransition(to VectorizationStatus) bool {
	return s == StatusPending && to.Terminal()
}

// ParseStatus converts a string into a VectorizationStatus.
func ParseStatus(v string) (VectorizationStatus, error) {
	s := VectorizationStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, v)
	}
	return s, nil
}

// SourceKind identifies which extractor variant produced a document.
type SourceKind string

const (
	// SourcePDF is an uploaded PDF file.
	SourcePDF SourceKind = "pdf"

	// SourceWeb is an arbitrary web page rendered in a browser.
	SourceWeb SourceKind = "web"

	// SourceProfile is a gated profile page fetched with session cookies.
	SourceProfile SourceKind = "profile"
)

// PDFContentType is the content type of every stored artifact.
const PDFContentType = "application/pdf"

// Document is one ingested source.
type Document struct {
	// ID is assigned by the metadata store on create.
	ID int64 `json:"id"`

	// Filename is the collision-free stored name.
	Filename string `json:"filename"`

	// OriginalFilename is the upload name or the name derived from the URL.
	OriginalFilename string `json:"original_filename"`

	// FilePath locates the PDF artifact in file storage.
	FilePath string `json:"file_path"`

	FileSize    int64      `json:"file_size"`
	ContentType string     `json:"content_type"`
	SourceKind  SourceKind `json:"source_kind"`

	// SourceURL is empty for uploads.
	SourceURL string `json:"source_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Status is mutated only by the ingestion orchestrator.
	Status VectorizationStatus `json:"vectorization_status"`

	// StatusError records why a document failed.
	StatusError string `json:"vectorization_error,omitempty"`

	// ChunksCount is set once on completion and stays 0 otherwise.
	ChunksCount int `json:"chunks_count"`
}

// DocumentStats summarises documents by status.
type DocumentStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Chunks    int `json:"chunks"`
}

// ListOptions filters and pages document listings.
type ListOptions struct {
	// Status restricts the listing when set.
	Status VectorizationStatus
	Limit  int
	Offset int
}

// Span is a rune range [Start, End) into the extracted text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Chunk is a text segment derived from one Document.
type Chunk struct {
	DocumentID int64

	// Index is 0-based and order-significant within the document.
	Index int

	Text string

	// Span locates the chunk in the source text.
	Span Span

	// Overlap is the number of runes shared with the previous chunk.
	Overlap int
}

// Point is a vector index record.
type Point struct {
	ID      string
	Vector  []float32
	Payload ChunkPayload
}

// ChunkPayload is the data persisted alongside each vector.
type ChunkPayload struct {
	DocumentID int64
	ChunkIndex int
	Filename   string
	Text       string
	SourceURL  string
	CreatedAt  time.Time
}

// ScoredPoint is a search hit from the vector index.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload ChunkPayload
}
