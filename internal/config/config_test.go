package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragstack/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Index.Backend)
	assert.Equal(t, "gemini", cfg.Embedding.Provider)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.7, cfg.Retrieval.MinScore, 1e-9)
	assert.Equal(t, 20, cfg.Retrieval.MinWords)
}

func TestLoadPartialYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
index:
  backend: milvus
  milvus_address: localhost:19530
retrieval:
  top_k: 8
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "milvus", cfg.Index.Backend)
	assert.Equal(t, "localhost:19530", cfg.Index.MilvusAddress)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	// Untouched sections keep their defaults.
	assert.Equal(t, "gemini-1.5-flash", cfg.Generation.Model)
	assert.Equal(t, 64, cfg.Embedding.BatchSize)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("INDEX_BACKEND", "pgvector")
	t.Setenv("DATABASE_URL", "postgres://localhost/rag")
	t.Setenv("EMBED_BATCH_SIZE", "16")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "pgvector", cfg.Index.Backend)
	assert.Equal(t, "postgres://localhost/rag", cfg.Index.PostgresDSN)
	assert.Equal(t, 16, cfg.Embedding.BatchSize)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  backend: qdrant\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}
