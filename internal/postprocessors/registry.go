// Package postprocessors selects text processing for extracted content.
package postprocessors

import (
	"fmt"

	"github.com/custodia-labs/sercha-kb/internal/core/domain"
	"github.com/custodia-labs/sercha-kb/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-kb/internal/postprocessors/chunker"
)

// Ensure Registry implements the interface.
var _ driven.ChunkerRegistry = (*Registry)(nil)

// BuilderFunc creates a Chunker from generic config.
// Config is a map of chunker settings parsed from user config.
type BuilderFunc func(cfg map[string]any) (driven.Chunker, error)

// Registry maps source kinds to chunkers. Kinds without an entry use
// the fallback.
type Registry struct {
	chunkers map[domain.SourceKind]driven.Chunker
	fallback driven.Chunker
}

// NewRegistry creates a registry whose fallback is the default chunker.
func NewRegistry() *Registry {
	return &Registry{
		chunkers: make(map[domain.SourceKind]driven.Chunker),
		fallback: chunker.New(),
	}
}

// Register sets the chunker for a source kind.
func (r *Registry) Register(kind domain.SourceKind, c driven.Chunker) {
	r.chunkers[kind] = c
}

// RegisterFromConfig builds a chunker from cfg and registers it.
func (r *Registry) RegisterFromConfig(kind domain.SourceKind, cfg map[string]any) error {
	c, err := BuildChunker(cfg)
	if err != nil {
		return fmt.Errorf("chunker for %s: %w", kind, err)
	}
	r.Register(kind, c)
	return nil
}

// For returns the chunker for kind.
func (r *Registry) For(kind domain.SourceKind) driven.Chunker {
	if c, ok := r.chunkers[kind]; ok {
		return c
	}
	return r.fallback
}

// Has returns true if kind has its own chunker.
func (r *Registry) Has(kind domain.SourceKind) bool {
	_, ok := r.chunkers[kind]
	return ok
}

// BuildChunker creates a chunker from generic config.
// Supported config keys:
//   - size (int): Characters per chunk (default: 1000)
//   - overlap (int): Overlapping characters between chunks (default: 200)
func BuildChunker(cfg map[string]any) (driven.Chunker, error) {
	var opts []chunker.Option

	if cfg != nil {
		if size, ok := getIntFromConfig(cfg, "size"); ok {
			opts = append(opts, chunker.WithChunkSize(size))
		}
		if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
			opts = append(opts, chunker.WithOverlap(overlap))
		}
	}

	return chunker.NewValidated(opts...)
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
