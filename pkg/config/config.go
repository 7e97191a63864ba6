// Package config holds runtime configuration for the matching engine.
// Values come from defaults, an optional YAML file, and environment
// variables, in that order (environment wins).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/adhocore/gronx"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Secret is a string that redacts itself in formatted output. Use Value()
// to read the raw content.
type Secret string

// Value returns the raw secret.
func (s Secret) Value() string { return string(s) }

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[redacted]"
}

type Config struct {
	LogLevel    string `env:"LOG_LEVEL" yaml:"log_level"`
	DataDir     string `env:"DATA_DIR" yaml:"data_dir"`
	CatalogPath string `env:"CATALOG_PATH" yaml:"catalog_path"`

	RAG     RAGConfig     `yaml:"rag"`
	Analyze AnalyzeConfig `yaml:"analyze"`
	Watch   WatchConfig   `yaml:"watch"`
}

// RAGConfig configures chunking, embeddings and the vector store.
type RAGConfig struct {
	ChunkSize    int `env:"CHUNK_SIZE" yaml:"chunk_size"`
	ChunkOverlap int `env:"CHUNK_OVERLAP" yaml:"chunk_overlap"`
	TopK         int `env:"TOP_K" yaml:"top_k"`

	EmbeddingProvider string        `env:"EMBEDDING_PROVIDER" yaml:"embedding_provider"`
	EmbeddingModel    string        `env:"EMBEDDING_MODEL" yaml:"embedding_model"`
	EmbeddingAPIBase  string        `env:"EMBEDDING_API_BASE" yaml:"embedding_api_base"`
	EmbeddingAPIKey   Secret        `env:"EMBEDDING_API_KEY" yaml:"embedding_api_key"`
	EmbeddingTimeout  time.Duration `env:"EMBEDDING_TIMEOUT" yaml:"embedding_timeout"`
	EmbeddingRPS      float64       `env:"EMBEDDING_RPS" yaml:"embedding_rps"`

	VectorStore      string `env:"VECTOR_STORE" yaml:"vector_store"`
	ChromaURL        string `env:"CHROMA_URL" yaml:"chroma_url"`
	ChromaCollection string `env:"CHROMA_COLLECTION" yaml:"chroma_collection"`
}

// AnalyzeConfig configures the chat-completion classifiers.
type AnalyzeConfig struct {
	BaseURL     string        `env:"OPENROUTER_BASE_URL" yaml:"base_url"`
	APIKey      Secret        `env:"OPENROUTER_API_KEY" yaml:"api_key"`
	Model       string        `env:"AI_MODEL" yaml:"model"`
	Temperature float64       `env:"AI_TEMPERATURE" yaml:"temperature"`
	MaxTokens   int           `env:"AI_MAX_TOKENS" yaml:"max_tokens"`
	Timeout     time.Duration `env:"AI_TIMEOUT" yaml:"timeout"`
	Concurrency int           `env:"AI_CONCURRENCY" yaml:"concurrency"`

	Referer string `yaml:"referer"`
	Title   string `yaml:"title"`
}

// WatchConfig configures catalog auto-reingest. The watched path is
// the configured catalog file itself.
type WatchConfig struct {
	Debounce    time.Duration `env:"WATCH_DEBOUNCE" yaml:"debounce"`
	RebuildCron string        `env:"WATCH_REBUILD_CRON" yaml:"rebuild_cron"`
}

// DefaultConfig returns the baseline configuration before file and
// environment overrides.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		DataDir:  "./data",
		RAG: RAGConfig{
			ChunkSize:         1000,
			ChunkOverlap:      200,
			TopK:              5,
			EmbeddingProvider: "openai",
			EmbeddingTimeout:  30 * time.Second,
			VectorStore:       "memory",
			ChromaURL:         "http://localhost:8000",
			ChromaCollection:  "service_documents",
		},
		Analyze: AnalyzeConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			Model:       "qwen/qwen3-32b",
			Temperature: 0.2,
			MaxTokens:   1000,
			Timeout:     60 * time.Second,
			Concurrency: 5,
			Referer:     "https://innovation-hub.local",
			Title:       "Innovation Hub AI Analysis",
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
	}
}

// Load builds the configuration from defaults and the environment.
// A missing embedding or chat API key is not an error here: the semantic
// and classifier paths degrade at use time instead.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	applyKeyFallbacks(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads a YAML overlay, then applies environment overrides on top.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	applyKeyFallbacks(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyKeyFallbacks fills credentials from the provider-native variable
// names when the engine-specific ones are unset.
func applyKeyFallbacks(cfg *Config) {
	if cfg.RAG.EmbeddingAPIKey == "" {
		cfg.RAG.EmbeddingAPIKey = Secret(os.Getenv("OPENAI_API_KEY"))
	}
}

// Validate reports the first structurally invalid setting. Credential
// presence is deliberately not checked.
func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 {
		return fmt.Errorf("config: chunk_overlap must not be negative, got %d", c.RAG.ChunkOverlap)
	}
	if c.RAG.TopK < 1 {
		return fmt.Errorf("config: top_k must be at least 1, got %d", c.RAG.TopK)
	}
	switch c.RAG.VectorStore {
	case "memory", "chroma":
	default:
		return fmt.Errorf("config: unknown vector_store %q (want memory or chroma)", c.RAG.VectorStore)
	}
	if c.Analyze.MaxTokens <= 0 {
		return fmt.Errorf("config: max_tokens must be positive, got %d", c.Analyze.MaxTokens)
	}
	if c.Analyze.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1, got %d", c.Analyze.Concurrency)
	}
	if c.Watch.RebuildCron != "" {
		if !gronx.New().IsValid(c.Watch.RebuildCron) {
			return fmt.Errorf("config: invalid rebuild_cron expression %q", c.Watch.RebuildCron)
		}
	}
	return nil
}
