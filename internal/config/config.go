// Package config loads the application configuration: a YAML file for
// structure and tuning, environment variables (optionally via .env) for
// secrets and deployment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig tunes the HTTP server.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	TimeoutSecs    int      `yaml:"timeout_secs"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider" validate:"oneof=gemini openai"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	BatchSize   int    `yaml:"batch_size" validate:"gte=0"`
	Workers     int    `yaml:"workers" validate:"gte=0"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
	APIKey      string `yaml:"-"`
}

// GenerationConfig tunes the answer model.
type GenerationConfig struct {
	Model            string `yaml:"model"`
	MaxContextTokens int    `yaml:"max_context_tokens" validate:"gte=0"`
}

// RetrievalConfig carries the default search knobs; requests may override.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k" validate:"gt=0"`
	MinScore float64 `yaml:"min_score"`
	MinWords int     `yaml:"min_words" validate:"gte=0"`
}

// IndexConfig selects the vector store backend.
type IndexConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=memory pgvector milvus"`
	Metric    string `yaml:"metric" validate:"oneof=cosine l2 ip"`
	IndexMode string `yaml:"index_mode" validate:"oneof=flat ivf_flat hnsw"`

	PostgresDSN string `yaml:"-"`

	MilvusAddress  string `yaml:"milvus_address"`
	MilvusDatabase string `yaml:"milvus_database"`
	MilvusUsername string `yaml:"-"`
	MilvusPassword string `yaml:"-"`
}

// Config is the application root configuration.
type Config struct {
	Server       ServerConfig     `yaml:"server"`
	Embedding    EmbeddingConfig  `yaml:"embedding"`
	Generation   GenerationConfig `yaml:"generation"`
	Retrieval    RetrievalConfig  `yaml:"retrieval"`
	Index        IndexConfig      `yaml:"index"`
	ArtifactsDir string           `yaml:"artifacts_dir"`
	LogLevel     string           `yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Load reads path (missing file means defaults), layers environment
// overrides on top and validates the result. A .env file in the working
// directory is honored first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyDefaults(cfg)
	applyEnv(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"*"},
			TimeoutSecs:    60,
		},
		Embedding: EmbeddingConfig{
			Provider:    "gemini",
			Model:       "gemini-embedding-001",
			BatchSize:   64,
			Workers:     4,
			TimeoutSecs: 30,
		},
		Generation: GenerationConfig{
			Model:            "gemini-1.5-flash",
			MaxContextTokens: 3000,
		},
		Retrieval: RetrievalConfig{
			TopK:     5,
			MinScore: 0.7,
			MinWords: 20,
		},
		Index: IndexConfig{
			Backend:   "memory",
			Metric:    "cosine",
			IndexMode: "ivf_flat",
		},
		ArtifactsDir: "artifacts",
		LogLevel:     "info",
	}
}

// applyDefaults fills fields a partial YAML file left zero.
func applyDefaults(cfg *Config) {
	base := defaults()
	if cfg.Server.Port == "" {
		cfg.Server.Port = base.Server.Port
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = base.Server.AllowedOrigins
	}
	if cfg.Server.TimeoutSecs == 0 {
		cfg.Server.TimeoutSecs = base.Server.TimeoutSecs
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = base.Embedding.Provider
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = base.Embedding.Model
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = base.Embedding.BatchSize
	}
	if cfg.Embedding.Workers == 0 {
		cfg.Embedding.Workers = base.Embedding.Workers
	}
	if cfg.Embedding.TimeoutSecs == 0 {
		cfg.Embedding.TimeoutSecs = base.Embedding.TimeoutSecs
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = base.Generation.Model
	}
	if cfg.Generation.MaxContextTokens == 0 {
		cfg.Generation.MaxContextTokens = base.Generation.MaxContextTokens
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = base.Retrieval.TopK
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = base.Index.Backend
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = base.Index.Metric
	}
	if cfg.Index.IndexMode == "" {
		cfg.Index.IndexMode = base.Index.IndexMode
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = base.LogLevel
	}
}

// applyEnv layers secrets and deployment overrides from the environment.
func applyEnv(cfg *Config) {
	cfg.Embedding.APIKey = firstEnv("GEMINI_API_KEY", "OPENAI_API_KEY")
	if key := os.Getenv("EMBED_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	}
	cfg.Index.PostgresDSN = os.Getenv("DATABASE_URL")
	cfg.Index.MilvusUsername = os.Getenv("MILVUS_USERNAME")
	cfg.Index.MilvusPassword = os.Getenv("MILVUS_PASSWORD")

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if addr := os.Getenv("MILVUS_ADDRESS"); addr != "" {
		cfg.Index.MilvusAddress = addr
	}
	if backend := os.Getenv("INDEX_BACKEND"); backend != "" {
		cfg.Index.Backend = backend
	}
	if dir := os.Getenv("ARTIFACTS_DIR"); dir != "" {
		cfg.ArtifactsDir = dir
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if n := envInt("EMBED_BATCH_SIZE"); n > 0 {
		cfg.Embedding.BatchSize = n
	}
	if n := envInt("EMBED_WORKERS"); n > 0 {
		cfg.Embedding.Workers = n
	}
}

// Timeout returns the server request timeout.
func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Timeout returns the per-batch embedding timeout.
func (c EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
