// Package httpapi serves the knowledge base over a JSON REST API.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/custodia-labs/sercha-kb/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// DefaultMaxUploadBytes bounds a PDF upload.
const DefaultMaxUploadBytes = 50 << 20

// ErrMissingServices is returned when a required service is not provided.
var ErrMissingServices = errors.New("httpapi: ingest, search and document services are required")

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	Ingest   driving.IngestionService
	Search   driving.SearchService
	Document driving.DocumentService
}

// Server routes REST requests to the services.
type Server struct {
	ports          Ports
	maxUploadBytes int64
	mux            *http.ServeMux
}

// Option configures Server.
type Option func(*Server)

// WithMaxUploadBytes sets the upload size limit.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// NewServer creates a server for the given ports.
func NewServer(ports Ports, opts ...Option) (*Server, error) {
	if ports.Ingest == nil || ports.Search == nil || ports.Document == nil {
		return nil, ErrMissingServices
	}
	s := &Server{
		ports:          ports,
		maxUploadBytes: DefaultMaxUploadBytes,
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /documents/upload-pdf", s.handleUploadPDF)
	s.mux.HandleFunc("POST /documents/url-to-pdf", s.handleURLToPDF)
	s.mux.HandleFunc("POST /documents/search", s.handleSearch)
	s.mux.HandleFunc("GET /documents", s.handleListDocuments)
	s.mux.HandleFunc("GET /documents/{id}", s.handleGetDocument)
	s.mux.HandleFunc("GET /documents/{id}/pdf", s.handleGetPDF)
	s.mux.HandleFunc("POST /documents/{id}/reingest", s.handleReingest)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		logger.Debug("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

// Run listens on addr until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until the context is cancelled, then
// drains in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown: %v", err)
		}
	}()

	logger.Info("Listening on %s", ln.Addr())
	err := httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
