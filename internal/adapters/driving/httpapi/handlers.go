package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// defaultSearchLimit applies when a search request omits the limit.
const defaultSearchLimit = 5

// URLRequest is the body of POST /documents/url-to-pdf.
type URLRequest struct {
	URL     string `json:"url"`
	Cookies string `json:"cookies,omitempty"`
}

// ReingestRequest is the optional body of POST /documents/{id}/reingest.
type ReingestRequest struct {
	Cookies string `json:"cookies,omitempty"`
}

// SearchRequest is the body of POST /documents/search.
type SearchRequest struct {
	Query         string   `json:"query"`
	Limit         *int     `json:"limit,omitempty"`
	MinConfidence *float64 `json:"min_confidence,omitempty"`
	Hybrid        bool     `json:"hybrid,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status     string    `json:"status"`
	Points     int       `json:"points"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// errorResponse is the body of every error reply.
type errorResponse struct {
	Detail string `json:"detail"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleUploadPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, fmt.Errorf("%w: reading upload: %v", domain.ErrInvalidInput, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: multipart field 'file' is required", domain.ErrInvalidInput))
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fmt.Errorf("%w: reading upload: %v", domain.ErrInvalidInput, err))
		return
	}

	doc, err := s.ports.Ingest.IngestPDF(r.Context(), header.Filename, data)
	writeIngestResult(w, doc, err)
}

func (s *Server) handleURLToPDF(w http.ResponseWriter, r *http.Request) {
	var req URLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	doc, err := s.ports.Ingest.IngestURL(r.Context(), req.URL, domain.NewSecret(req.Cookies))
	writeIngestResult(w, doc, err)
}

func (s *Server) handleReingest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req ReingestRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	doc, err := s.ports.Ingest.Reingest(r.Context(), id, domain.NewSecret(req.Cookies))
	if doc != nil {
		writeJSON(w, http.StatusOK, doc)
		return
	}
	writeError(w, err)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	limit := defaultSearchLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	resp, err := s.ports.Search.Search(r.Context(), domain.SearchQuery{
		Text:          req.Query,
		Limit:         limit,
		MinConfidence: req.MinConfidence,
		Hybrid:        req.Hybrid,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := domain.ListOptions{Status: domain.VectorizationStatus(q.Get("status"))}

	var err error
	if opts.Limit, err = queryInt(q.Get("limit")); err != nil {
		writeError(w, err)
		return
	}
	if opts.Offset, err = queryInt(q.Get("offset")); err != nil {
		writeError(w, err)
		return
	}

	docs, err := s.ports.Document.List(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := s.ports.Document.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetPDF(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rc, doc, err := s.ports.Document.OpenPDF(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Filename))
	if doc.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.FileSize, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		logger.Warn("Streaming pdf for document %d: %v", id, err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy", Timestamp: time.Now().UTC()}
	info, err := s.ports.Document.IndexInfo(r.Context())
	if err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Points = info.Points
	resp.Model = info.Model
	resp.Dimensions = info.Dimensions
	writeJSON(w, http.StatusOK, resp)
}

// writeIngestResult replies 201 whenever a document record exists, so a
// failed document is reported with its status and reason.
func writeIngestResult(w http.ResponseWriter, doc *domain.Document, err error) {
	if doc != nil {
		if err != nil {
			logger.Info("Document %d failed: %v", doc.ID, err)
		}
		writeJSON(w, http.StatusCreated, doc)
		return
	}
	writeError(w, err)
}

// StatusFor maps a service error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSchemaMismatch):
		return http.StatusConflict
	case errors.Is(err, domain.ErrIndexUnavailable), errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrRendererUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrExtraction):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	resp := errorResponse{Detail: err.Error()}
	if reason, ok := domain.ExtractionReasonOf(err); ok {
		resp.Reason = string(reason)
	}
	if status == http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
		resp.Detail = "internal server error"
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Encoding response: %v", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: document id must be a positive integer", domain.ErrInvalidInput)
	}
	return id, nil
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", domain.ErrInvalidInput, v)
	}
	return n, nil
}
