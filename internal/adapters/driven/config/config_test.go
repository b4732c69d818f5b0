package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "qdrant", cfg.Vector.Backend)
	assert.Equal(t, "localhost", cfg.Vector.Host)
	assert.Equal(t, 6334, cfg.Vector.Port)
	assert.Equal(t, "KBCollection_LinkedIn", cfg.Vector.Collection)
	assert.Equal(t, 10*time.Second, cfg.Vector.Timeout)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, 64, cfg.Embedding.BatchSize)
	assert.Equal(t, ChunkSettings{Size: 800, Overlap: 150}, cfg.Chunking.PDF)
	assert.Equal(t, ChunkSettings{Size: 1000, Overlap: 200}, cfg.Chunking.Web)
	assert.Equal(t, 60*time.Second, cfg.Extract.WebTimeout)
	assert.Equal(t, 15*time.Second, cfg.Extract.ProfileTimeout)
	assert.Equal(t, 3, cfg.Extract.Attempts)
	assert.Equal(t, 100, cfg.Extract.MinTextLength)
	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRate)
	assert.Equal(t, time.Hour, cfg.Schedule.ReconcileInterval)
	assert.Empty(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
[storage]
dir = "/var/lib/kb"

[vector]
host = "qdrant.internal"
timeout = "3s"

[embedding]
provider = "hash"
dimensions = 128

[chunking.pdf]
size = 500
overlap = 50
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/kb", cfg.Storage.Dir)
	assert.Equal(t, filepath.Join("/var/lib/kb", "data"), cfg.DataDir())
	assert.Equal(t, filepath.Join("/var/lib/kb", "uploads"), cfg.UploadsDir())
	assert.Equal(t, "qdrant.internal", cfg.Vector.Host)
	assert.Equal(t, 6334, cfg.Vector.Port, "unset keys keep defaults")
	assert.Equal(t, 3*time.Second, cfg.Vector.Timeout)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, 128, cfg.Embedding.Dimensions)
	assert.Equal(t, ChunkSettings{Size: 500, Overlap: 50}, cfg.Chunking.PDF)
	assert.Equal(t, ChunkSettings{Size: 1000, Overlap: 200}, cfg.Chunking.Web)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "[vector]\nhost = \"from-file\"\n")
	t.Setenv("SERCHA_KB_VECTOR_HOST", "from-env")
	t.Setenv("SERCHA_KB_LOG_FORMAT", "json")
	t.Setenv("SERCHA_KB_EXTRACT_BACKOFF", "500ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Vector.Host)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 500*time.Millisecond, cfg.Extract.Backoff)
}

func TestLoad_LegacyEnvAliases(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("QDRANT_HOST", "legacy-host")
	t.Setenv("QDRANT_PORT", "16334")
	t.Setenv("COLLECTION_NAME", "legacy")
	t.Setenv("EMBEDDING_MODEL", "all-minilm")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "legacy-host", cfg.Vector.Host)
	assert.Equal(t, 16334, cfg.Vector.Port)
	assert.Equal(t, "legacy", cfg.Vector.Collection)
	assert.Equal(t, "all-minilm", cfg.Embedding.Model)
}

func TestLoad_PrefixedEnvWinsOverAlias(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("QDRANT_HOST", "legacy-host")
	t.Setenv("SERCHA_KB_VECTOR_HOST", "new-host")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "new-host", cfg.Vector.Host)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err, "an explicit path must exist")

	_, err = Load(writeConfig(t, "not = [valid"))
	assert.Error(t, err)
}

func TestLoad_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(writeConfig(t, "[storage]\ndir = \"~/kb\"\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "kb"), cfg.Storage.Dir)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Storage:   StorageConfig{Backend: "sqlite"},
			Vector:    VectorConfig{Backend: "qdrant"},
			Embedding: EmbeddingConfig{Provider: "ollama"},
			Chunking: ChunkingConfig{
				PDF: ChunkSettings{Size: 800, Overlap: 150},
				Web: ChunkSettings{Size: 1000, Overlap: 200},
			},
			Extract:   ExtractConfig{Attempts: 3},
			Telemetry: TelemetryConfig{SampleRate: 1},
		}
	}

	tests := []struct {
		name   string
		modify func(c *Config)
		want   string
	}{
		{"unknown storage", func(c *Config) { c.Storage.Backend = "postgres" }, "storage backend 'postgres'"},
		{"unknown vector", func(c *Config) { c.Vector.Backend = "pgvector" }, "vector backend 'pgvector'"},
		{"volatile index", func(c *Config) { c.Vector.Backend = "memory" }, "does not persist"},
		{"openai without key", func(c *Config) { c.Embedding.Provider = "openai" }, "api_key is empty"},
		{"negative dimensions", func(c *Config) { c.Embedding.Dimensions = -1 }, "dimensions -1"},
		{"overlap too large", func(c *Config) { c.Chunking.Web.Overlap = 1000 }, "chunking.web"},
		{"no attempts", func(c *Config) { c.Extract.Attempts = 0 }, "attempts 0"},
		{"sample rate", func(c *Config) { c.Telemetry.SampleRate = 2 }, "sample_rate"},
		{"negative interval", func(c *Config) { c.Schedule.ReconcileInterval = -time.Second }, "reconcile_interval"},
	}

	assert.Empty(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(c)
			warnings := c.Validate()
			require.Len(t, warnings, 1)
			assert.Contains(t, warnings[0], tt.want)
		})
	}
}
