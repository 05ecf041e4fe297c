// Package retrieval answers text queries against an indexed collection:
// embed the query, search the vector index, then post-filter and rank.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ragstack/internal/core"
	"ragstack/internal/vectorindex"
)

// overfetchFactor widens the index query when post-filters may discard
// results, so the caller still tends to receive a full topK.
const overfetchFactor = 3

// Embedder is the slice of the embedding gateway retrieval needs.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Options shape one retrieval call.
//
// TopK is required and positive. MinScore, when set, drops results scoring
// worse than the bound in the collection metric's own direction. MinWords
// drops results whose chunk text has fewer words. Filter is pushed down to
// the index.
type Options struct {
	TopK     int                 `json:"top_k"`
	MinScore *float64            `json:"min_score,omitempty"`
	MinWords int                 `json:"min_words,omitempty"`
	Filter   *vectorindex.Filter `json:"filter,omitempty"`
}

// Engine wires the embedder to the index.
type Engine struct {
	embedder Embedder
	index    vectorindex.Index
	log      *zap.Logger
}

// NewEngine builds a retrieval engine. A nil logger falls back to no-op.
func NewEngine(embedder Embedder, index vectorindex.Index, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{embedder: embedder, index: index, log: log}
}

// Retrieve embeds the query and returns up to opts.TopK results, best first,
// re-ranked 1..n after filtering. A collection indexed under a different
// embedding model fails with core.ErrModelMismatch before any embedding
// call is spent.
func (e *Engine) Retrieve(ctx context.Context, collection, query string, opts Options) ([]core.SearchResult, error) {
	if opts.TopK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", core.ErrInvalidParams, opts.TopK)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", core.ErrInvalidInput)
	}

	info, err := e.index.DescribeCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if info.Model != "" && info.Model != e.embedder.Model() {
		return nil, fmt.Errorf("%w: collection %q indexed with %q, query embedder is %q",
			core.ErrModelMismatch, collection, info.Model, e.embedder.Model())
	}

	vector, err := e.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	fetchK := opts.TopK
	if opts.MinScore != nil || opts.MinWords > 0 {
		fetchK = opts.TopK * overfetchFactor
	}
	results, err := e.index.Query(ctx, collection, vector, fetchK, opts.Filter)
	if err != nil {
		return nil, err
	}

	kept := results[:0]
	for _, r := range results {
		if opts.MinScore != nil && info.Metric.Better(*opts.MinScore, r.Score) {
			continue
		}
		if opts.MinWords > 0 && r.Meta.WordCount < opts.MinWords {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) > opts.TopK {
		kept = kept[:opts.TopK]
	}
	for i := range kept {
		kept[i].Rank = i + 1
	}

	e.log.Debug("retrieval complete",
		zap.String("collection", collection),
		zap.Int("fetched", len(results)),
		zap.Int("returned", len(kept)))
	return kept, nil
}
