// Package embedding turns chunk text into vectors through a pluggable
// provider. The gateway owns batching, bounded concurrency and the
// per-batch timeout; providers only know how to embed one batch.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"ragstack/internal/core"
)

const (
	defaultBatchSize = 64
	defaultWorkers   = 4
	defaultTimeout   = 30 * time.Second
)

// Gateway batches texts and embeds them through the provider. A call either
// yields one vector per input text, in input order, or fails as a whole; no
// partial results escape.
type Gateway struct {
	provider  core.EmbeddingProvider
	batchSize int
	workers   int
	timeout   time.Duration
}

// Option tunes a Gateway.
type Option func(*Gateway)

// WithBatchSize caps how many texts go into one provider call.
func WithBatchSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

// WithWorkers caps how many provider calls run at once.
func WithWorkers(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithTimeout bounds each provider call.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGateway wraps the provider.
func NewGateway(provider core.EmbeddingProvider, opts ...Option) *Gateway {
	g := &Gateway{
		provider:  provider,
		batchSize: defaultBatchSize,
		workers:   defaultWorkers,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model reports the provider's model identifier. Collections record it so
// queries embedded under a different model are rejected before they search.
func (g *Gateway) Model() string { return g.provider.Model() }

// Embed returns one vector per text, position i matching texts[i]. Empty or
// whitespace-only texts fail the whole call with core.ErrInvalidInput before
// any provider call is made.
func (g *Gateway) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: text %d is empty", core.ErrInvalidInput, i)
		}
	}

	results := make([][]float32, len(texts))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

	batch := 0
	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end, batch := start, end, batch
		eg.Go(func() error {
			vectors, err := g.embedBatch(ctx, texts[start:end])
			if err != nil {
				return &core.ProviderError{Batch: batch, Cause: err}
			}
			copy(results[start:], vectors)
			return nil
		})
		batch++
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// EmbedOne embeds a single text, typically a query.
func (g *Gateway) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (g *Gateway) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	vectors, err := g.provider.EmbedBatch(ctx, texts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", core.ErrProviderTimeout, g.provider.Model(), g.timeout)
		}
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("provider %s returned %d vectors for %d texts",
			g.provider.Model(), len(vectors), len(texts))
	}
	return vectors, nil
}
