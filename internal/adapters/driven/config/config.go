// Package config loads sercha-kb configuration. Environment variables
// override the TOML file, which overrides the built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SERCHA_KB_VECTOR_HOST.
const EnvPrefix = "SERCHA_KB"

// Config holds all application configuration.
type Config struct {
	Storage   StorageConfig   `mapstructure:"storage"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

type StorageConfig struct {
	// Dir holds data/metadata.db and the uploads directory.
	Dir     string `mapstructure:"dir"`
	Backend string `mapstructure:"backend"`
}

type VectorConfig struct {
	Backend    string        `mapstructure:"backend"`
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type EmbeddingConfig struct {
	Provider   string        `mapstructure:"provider"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	BatchSize  int           `mapstructure:"batch_size"`
	RateLimit  float64       `mapstructure:"rate_limit"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type ChunkingConfig struct {
	PDF ChunkSettings `mapstructure:"pdf"`
	Web ChunkSettings `mapstructure:"web"`
}

// ChunkSettings sizes chunks for one source family, in characters.
type ChunkSettings struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

type ExtractConfig struct {
	WebTimeout     time.Duration `mapstructure:"web_timeout"`
	ProfileTimeout time.Duration `mapstructure:"profile_timeout"`
	Attempts       int           `mapstructure:"attempts"`
	Backoff        time.Duration `mapstructure:"backoff"`
	BrowserBin     string        `mapstructure:"browser_bin"`
	MinTextLength  int           `mapstructure:"min_text_length"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type MCPConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// ScheduleConfig sets background task intervals. Zero disables a task.
type ScheduleConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

// Defaults returns every key with its default value. Durations are
// strings so the map can be written to TOML as is.
func Defaults() map[string]any {
	return map[string]any{
		"storage.dir":             DefaultDir(),
		"storage.backend":         "sqlite",
		"vector.backend":          "qdrant",
		"vector.host":             "localhost",
		"vector.port":             6334,
		"vector.collection":       "KBCollection_LinkedIn",
		"vector.timeout":          "10s",
		"embedding.provider":      "ollama",
		"embedding.model":         "",
		"embedding.dimensions":    0,
		"embedding.base_url":      "",
		"embedding.api_key":       "",
		"embedding.batch_size":    64,
		"embedding.rate_limit":    0.0,
		"embedding.timeout":       "60s",
		"chunking.pdf.size":       800,
		"chunking.pdf.overlap":    150,
		"chunking.web.size":       1000,
		"chunking.web.overlap":    200,
		"extract.web_timeout":     "60s",
		"extract.profile_timeout": "15s",
		"extract.attempts":        3,
		"extract.backoff":         "2s",
		"extract.browser_bin":     "",
		"extract.min_text_length": 100,
		"http.addr":               ":8000",
		"mcp.port":                0,
		"log.level":               "warn",
		"log.format":              "plain",
		"telemetry.otlp_endpoint": "",
		"telemetry.sample_rate":   1.0,

		"schedule.reconcile_interval": "1h",
	}
}

// envAliases binds the environment names used by earlier deployments.
var envAliases = map[string]string{
	"vector.host":       "QDRANT_HOST",
	"vector.port":       "QDRANT_PORT",
	"vector.collection": "COLLECTION_NAME",
	"embedding.model":   "EMBEDDING_MODEL",
	"embedding.api_key": "OPENAI_API_KEY",
}

// DefaultDir returns ~/.sercha-kb, or .sercha-kb when there is no home.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sercha-kb"
	}
	return filepath.Join(home, ".sercha-kb")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.toml")
}

// Load reads configuration from file and environment. An empty path
// uses DefaultPath, which may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, alias); err != nil {
			return nil, fmt.Errorf("binding %s: %w", alias, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.Storage.Dir = expandHome(cfg.Storage.Dir)

	return &cfg, nil
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	switch c.Storage.Backend {
	case "sqlite", "memory":
	default:
		warnings = append(warnings, fmt.Sprintf("storage backend '%s' is unknown, expected sqlite or memory", c.Storage.Backend))
	}
	switch c.Vector.Backend {
	case "qdrant", "memory":
	default:
		warnings = append(warnings, fmt.Sprintf("vector backend '%s' is unknown, expected qdrant or memory", c.Vector.Backend))
	}
	if c.Vector.Backend == "memory" && c.Storage.Backend == "sqlite" {
		warnings = append(warnings, "memory vector index does not persist; completed documents will have no points after restart")
	}

	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" && c.Embedding.BaseURL == "" {
		warnings = append(warnings, "embedding provider 'openai' is configured but api_key is empty")
	}
	if c.Embedding.Dimensions < 0 {
		warnings = append(warnings, fmt.Sprintf("embedding dimensions %d is negative", c.Embedding.Dimensions))
	}

	for _, name := range []string{"pdf", "web"} {
		cs := c.Chunking.PDF
		if name == "web" {
			cs = c.Chunking.Web
		}
		if cs.Size <= 0 || cs.Overlap < 0 || cs.Overlap >= cs.Size {
			warnings = append(warnings, fmt.Sprintf("chunking.%s size %d / overlap %d is invalid", name, cs.Size, cs.Overlap))
		}
	}

	if c.Extract.Attempts < 1 {
		warnings = append(warnings, fmt.Sprintf("extract attempts %d is below 1", c.Extract.Attempts))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("telemetry sample_rate %.2f is outside [0.0, 1.0]", c.Telemetry.SampleRate))
	}

	if c.Schedule.ReconcileInterval < 0 {
		warnings = append(warnings, fmt.Sprintf("schedule reconcile_interval %s is negative", c.Schedule.ReconcileInterval))
	}

	return warnings
}

// DataDir returns the directory holding the SQLite metadata file.
func (c *Config) DataDir() string {
	return filepath.Join(c.Storage.Dir, "data")
}

// UploadsDir returns the PDF artifact directory.
func (c *Config) UploadsDir() string {
	return filepath.Join(c.Storage.Dir, "uploads")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
