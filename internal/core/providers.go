package core

import "context"

// EmbeddingProvider maps a batch of texts to fixed-dimension vectors. The
// model is fixed at construction; Model reports its identifier so callers
// can detect index/query drift. Output order matches input order.
type EmbeddingProvider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// GenerationProvider completes a prompt with a language model fixed at
// construction.
type GenerationProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}
