// Package embedding selects an embedding provider and wraps it in the
// process-wide Shared handle.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/embedding/local"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/sercha-kb/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/logger"
)

// Ensure Shared implements the interface.
var _ driven.EmbeddingService = (*Shared)(nil)

// Provider names.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"
)

// DefaultBatchSize is the number of texts sent per provider call.
const DefaultBatchSize = 64

// Config selects and configures a provider.
type Config struct {
	Provider   string
	Model      string
	Dimensions int
	BaseURL    string
	APIKey     string
	BatchSize  int
	RateLimit  float64
	Timeout    time.Duration
}

// Factory builds the underlying provider.
type Factory func() (driven.EmbeddingService, error)

// NewFactory returns a Factory for the configured provider.
func NewFactory(cfg Config) (Factory, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		return func() (driven.EmbeddingService, error) {
			return ollama.NewEmbeddingService(ollama.Config{
				BaseURL:    cfg.BaseURL,
				Model:      cfg.Model,
				Timeout:    cfg.Timeout,
				Dimensions: cfg.Dimensions,
				RateLimit:  cfg.RateLimit,
			}), nil
		}, nil
	case ProviderOpenAI:
		return func() (driven.EmbeddingService, error) {
			return openai.NewEmbeddingService(openai.Config{
				APIKey:     cfg.APIKey,
				BaseURL:    cfg.BaseURL,
				Model:      cfg.Model,
				Timeout:    cfg.Timeout,
				Dimensions: cfg.Dimensions,
			})
		}, nil
	case ProviderHash:
		return func() (driven.EmbeddingService, error) {
			return local.NewEmbeddingService(cfg.Dimensions), nil
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, cfg.Provider)
	}
}

// Shared is the single embedding handle of the process. The provider is
// built once, on first use or on Start, and reused by every caller.
type Shared struct {
	factory   Factory
	batchSize int

	once    sync.Once
	svc     driven.EmbeddingService
	initErr error

	closeOnce sync.Once
}

// SharedOption configures Shared.
type SharedOption func(*Shared)

// WithBatchSize sets the provider batch size.
func WithBatchSize(n int) SharedOption {
	return func(s *Shared) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewShared creates an uninitialised handle.
func NewShared(factory Factory, opts ...SharedOption) *Shared {
	s := &Shared{factory: factory, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Shared) load() (driven.EmbeddingService, error) {
	s.once.Do(func() {
		svc, err := s.factory()
		if err != nil {
			s.initErr = fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
			return
		}
		if svc.Dimensions() <= 0 {
			s.initErr = fmt.Errorf("%w: model %s reports no dimensions", domain.ErrEmbeddingUnavailable, svc.ModelName())
			return
		}
		logger.Debug("embedding model %s loaded (%d dimensions)", svc.ModelName(), svc.Dimensions())
		s.svc = svc
	})
	return s.svc, s.initErr
}

// Start loads the provider and checks it is reachable.
func (s *Shared) Start(ctx context.Context) error {
	svc, err := s.load()
	if err != nil {
		return err
	}
	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	return nil
}

// Embed generates a vector embedding for the given text.
func (s *Shared) Embed(ctx context.Context, text string) ([]float32, error) {
	svc, err := s.load()
	if err != nil {
		return nil, err
	}
	vec, err := svc.Embed(ctx, text)
	if err != nil {
		return nil, wrap(err)
	}
	if err := checkDim(vec, svc.Dimensions()); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedBatch embeds texts in provider-sized batches. The result has one
// vector per input, in input order.
func (s *Shared) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	svc, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		vecs, err := svc.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, wrap(err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbedding, len(vecs), end-start)
		}
		for _, v := range vecs {
			if err := checkDim(v, svc.Dimensions()); err != nil {
				return nil, err
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Dimensions returns the provider's vector size, or 0 if it cannot load.
func (s *Shared) Dimensions() int {
	svc, err := s.load()
	if err != nil {
		return 0
	}
	return svc.Dimensions()
}

// ModelName returns the provider's model, or "" if it cannot load.
func (s *Shared) ModelName() string {
	svc, err := s.load()
	if err != nil {
		return ""
	}
	return svc.ModelName()
}

// Ping checks the provider.
func (s *Shared) Ping(ctx context.Context) error {
	svc, err := s.load()
	if err != nil {
		return err
	}
	if err := svc.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	return nil
}

// Close releases the provider if it was loaded.
func (s *Shared) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// Prevent a late first use from loading after shutdown.
		s.once.Do(func() { s.initErr = fmt.Errorf("%w: closed", domain.ErrEmbeddingUnavailable) })
		if s.svc != nil {
			err = s.svc.Close()
		}
	})
	return err
}

func wrap(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
}

func checkDim(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: vector has %d dimensions, model declares %d", domain.ErrEmbedding, len(vec), want)
	}
	return nil
}
