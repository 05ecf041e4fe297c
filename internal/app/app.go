// Package app assembles the pipeline from configuration: parsers, chunking,
// embedding, the vector index backend, retrieval, generation and the HTTP
// server.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ragstack/internal/api/handlers"
	"ragstack/internal/artifact"
	"ragstack/internal/chunking"
	"ragstack/internal/config"
	"ragstack/internal/core"
	"ragstack/internal/embedding"
	"ragstack/internal/generation"
	"ragstack/internal/ingest"
	"ragstack/internal/parser"
	"ragstack/internal/retrieval"
	"ragstack/internal/vectorindex"
)

// App owns the wired components and their shutdown order.
type App struct {
	Server *Server
	Log    *zap.Logger
	Index  vectorindex.Index

	closers []func(context.Context) error
}

// New builds the application.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &App{Log: log}

	index, err := a.buildIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Index = index
	log.Info("vector index ready", zap.String("backend", cfg.Index.Backend))

	provider, err := a.buildEmbeddingProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gateway := embedding.NewGateway(provider,
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithWorkers(cfg.Embedding.Workers),
		embedding.WithTimeout(cfg.Embedding.Timeout()),
	)
	log.Info("embedding provider ready",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", provider.Model()))

	genProvider, err := generation.NewGeminiProvider(ctx, cfg.Embedding.APIKey, cfg.Generation.Model)
	if err != nil {
		return nil, fmt.Errorf("init generation provider: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return genProvider.Close() })

	counter, err := generation.NewTiktokenCounter(cfg.Generation.Model)
	if err != nil {
		return nil, err
	}

	artifacts := artifact.NewStore(cfg.ArtifactsDir)
	pipeline := ingest.NewPipeline(
		parser.DefaultRegistry(),
		chunking.DefaultEngine(nil),
		gateway,
		index,
		artifacts,
		log,
	)
	retriever := retrieval.NewEngine(gateway, index, log)
	orchestrator := generation.NewOrchestrator(retriever, genProvider, counter, artifacts, log)

	a.Server = NewServer(cfg,
		handlers.NewDocumentHandler(pipeline, log),
		handlers.NewCollectionHandler(index, log),
		handlers.NewSearchHandler(retriever, artifacts, cfg.Retrieval, log),
		handlers.NewChatHandler(orchestrator, cfg.Retrieval, cfg.Generation.MaxContextTokens, log),
		log,
	)
	return a, nil
}

func (a *App) buildIndex(ctx context.Context, cfg *config.Config) (vectorindex.Index, error) {
	switch cfg.Index.Backend {
	case "pgvector":
		pg, err := vectorindex.NewPostgres(ctx, cfg.Index.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("init pgvector index: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return pg.Close() })
		return pg, nil
	case "milvus":
		mv, err := vectorindex.NewMilvus(ctx, vectorindex.MilvusConfig{
			Address:   cfg.Index.MilvusAddress,
			Username:  cfg.Index.MilvusUsername,
			Password:  cfg.Index.MilvusPassword,
			Database:  cfg.Index.MilvusDatabase,
			IndexMode: cfg.Index.IndexMode,
		})
		if err != nil {
			return nil, fmt.Errorf("init milvus index: %w", err)
		}
		a.closers = append(a.closers, mv.Close)
		return mv, nil
	default:
		return vectorindex.NewMemory(), nil
	}
}

func (a *App) buildEmbeddingProvider(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		return embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			BaseURL: cfg.Embedding.BaseURL,
			APIKey:  cfg.Embedding.APIKey,
			Model:   cfg.Embedding.Model,
			Timeout: cfg.Embedding.Timeout(),
		})
	default:
		g, err := embedding.NewGeminiProvider(ctx, cfg.Embedding.APIKey, cfg.Embedding.Model)
		if err != nil {
			return nil, fmt.Errorf("init gemini embedder: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return g.Close() })
		return g, nil
	}
}

// Close releases backends in reverse construction order.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Log.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.Log.Sync()
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
