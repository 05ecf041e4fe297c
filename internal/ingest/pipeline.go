// Package ingest runs the indexing pipeline: parse the upload, chunk it,
// embed the chunks and upsert them into a collection. Chunk IDs are
// deterministic, so re-ingesting a document overwrites its previous chunks
// instead of duplicating them.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ragstack/internal/artifact"
	"ragstack/internal/chunking"
	"ragstack/internal/core"
	"ragstack/internal/document"
	"ragstack/internal/embedding"
	"ragstack/internal/parser"
	"ragstack/internal/vectorindex"
)

// Default chunking params when a request sets none, so an upload with no
// chunking fields still takes the fixed_size path.
const (
	defaultChunkSize = 800
	defaultOverlap   = 100
)

// Request describes one document to ingest. An empty Strategy falls back to
// fixed_size with default params; an empty Metric to cosine.
type Request struct {
	Collection string
	DocID      string
	Filename   string
	Data       []byte
	Strategy   string
	Params     chunking.Params
	Metric     vectorindex.Metric
}

// Result summarizes one ingested document.
type Result struct {
	DocID      string `json:"doc_id"`
	Collection string `json:"collection"`
	Pages      int    `json:"pages"`
	Chunks     int    `json:"chunks"`
}

// Pipeline owns the ingest stages.
type Pipeline struct {
	parsers   *parser.Registry
	chunker   *chunking.Engine
	embedder  *embedding.Gateway
	index     vectorindex.Index
	artifacts *artifact.Store
	log       *zap.Logger
}

// NewPipeline wires the stages. A nil logger falls back to no-op.
func NewPipeline(parsers *parser.Registry, chunker *chunking.Engine, embedder *embedding.Gateway, index vectorindex.Index, artifacts *artifact.Store, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		parsers:   parsers,
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		artifacts: artifacts,
		log:       log,
	}
}

// Ingest runs the full pipeline for one document.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (*Result, error) {
	if req.Collection == "" || req.DocID == "" {
		return nil, fmt.Errorf("%w: collection and doc_id are required", core.ErrInvalidParams)
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = chunking.StrategyFixedSize
	}
	if req.Params == (chunking.Params{}) {
		req.Params = chunking.Params{ChunkSize: defaultChunkSize, Overlap: defaultOverlap}
	}
	metric := req.Metric
	if metric == "" {
		metric = vectorindex.MetricCosine
	}

	doc, err := p.parsers.Parse(req.DocID, req.Filename, req.Data)
	if err != nil {
		return nil, err
	}
	return p.IngestParsed(ctx, req.Collection, doc, strategy, req.Params, metric)
}

// IngestParsed indexes an already-parsed document.
func (p *Pipeline) IngestParsed(ctx context.Context, collection string, doc *document.ParsedDocument, strategy string, params chunking.Params, metric vectorindex.Metric) (*Result, error) {
	chunks, err := p.chunker.Chunk(doc, strategy, params)
	if err != nil {
		return nil, err
	}
	if err := p.artifacts.SaveChunks(doc.DocID, strategy, chunks); err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed document %s: %w", doc.DocID, err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: document %s produced no vectors", core.ErrEmptyDocument, doc.DocID)
	}

	if err := p.index.CreateCollection(ctx, collection, len(vectors[0]), metric, p.embedder.Model()); err != nil {
		return nil, err
	}

	entries := make([]vectorindex.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vectorindex.Entry{Chunk: c, Vector: vectors[i]}
	}
	if err := p.index.Upsert(ctx, collection, entries); err != nil {
		return nil, err
	}

	p.log.Info("document ingested",
		zap.String("collection", collection),
		zap.String("doc_id", doc.DocID),
		zap.String("strategy", strategy),
		zap.Int("chunks", len(chunks)))
	return &Result{
		DocID:      doc.DocID,
		Collection: collection,
		Pages:      len(doc.Pages),
		Chunks:     len(chunks),
	}, nil
}

// IngestAll runs requests concurrently with at most workers in flight. The
// first failure cancels the rest.
func (p *Pipeline) IngestAll(ctx context.Context, reqs []Request, workers int) ([]*Result, error) {
	if workers <= 0 {
		workers = 2
	}
	results := make([]*Result, len(reqs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, req := range reqs {
		i, req := i, req
		eg.Go(func() error {
			res, err := p.Ingest(ctx, req)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", req.DocID, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteDocument removes a document's chunks from the collection. The chunk
// IDs come from the persisted chunk artifact of the ingest that wrote them.
func (p *Pipeline) DeleteDocument(ctx context.Context, collection, docID, strategy string) error {
	if strategy == "" {
		strategy = chunking.StrategyFixedSize
	}
	var chunks []core.Chunk
	if err := p.artifacts.LoadJSON(artifact.DirChunks, fmt.Sprintf("%s.%s", docID, strategy), &chunks); err != nil {
		return err
	}
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return p.index.Delete(ctx, collection, ids)
}
