// Package chunking converts a parsed document into an ordered sequence of
// retrievable chunks under a selected strategy. Chunking is pure: identical
// (document, strategy, params) input always yields the identical chunk
// sequence with the same chunk IDs, so re-indexing is idempotent.
package chunking

import (
	"fmt"

	"ragstack/internal/core"
	"ragstack/internal/document"
)

// Strategy names accepted by the engine.
const (
	StrategyFixedSize = "fixed_size"
	StrategyPage      = "page_based"
	StrategyHeading   = "heading_based"
	StrategySemantic  = "semantic"
)

// Params tunes a chunking strategy.
//
// ChunkSize:       window size in runes (fixed_size) or soft ceiling (semantic).
// Overlap:         runes shared between consecutive fixed_size windows.
// PagesPerChunk:   pages grouped into one chunk (page_based), default 1.
// MaxHeadingLevel: headings at this level or shallower start a new chunk
//                  (heading_based), default 1.
// MergeThreshold:  minimum similarity for semantic merging past the size
//                  ceiling, default 0.6.
type Params struct {
	ChunkSize       int     `json:"chunk_size,omitempty"`
	Overlap         int     `json:"overlap,omitempty"`
	PagesPerChunk   int     `json:"pages_per_chunk,omitempty"`
	MaxHeadingLevel int     `json:"max_heading_level,omitempty"`
	MergeThreshold  float64 `json:"merge_threshold,omitempty"`
}

// Strategy splits one document into chunks. Implementations fill Text,
// PageStart/PageEnd, HeadingPath and the rune span; the engine fills the
// rest.
type Strategy interface {
	Name() string
	Split(doc *document.ParsedDocument, p Params) ([]core.Chunk, error)
}

// Engine dispatches to a closed set of strategies built at startup.
type Engine struct {
	strategies map[string]Strategy
}

// NewEngine builds an engine over the given strategies.
func NewEngine(strategies ...Strategy) *Engine {
	m := make(map[string]Strategy, len(strategies))
	for _, s := range strategies {
		m[s.Name()] = s
	}
	return &Engine{strategies: m}
}

// DefaultEngine wires the four built-in strategies. sim may be nil; the
// semantic strategy then merges on size alone.
func DefaultEngine(sim SimilarityFunc) *Engine {
	return NewEngine(
		&FixedSize{},
		&PageBased{},
		&HeadingBased{},
		&Semantic{Sim: sim},
	)
}

// Chunk splits the document under the named strategy. It fails with
// core.ErrInvalidParams for an unknown strategy or invalid params, and with
// core.ErrEmptyDocument when no page carries extractable text.
func (e *Engine) Chunk(doc *document.ParsedDocument, strategy string, p Params) ([]core.Chunk, error) {
	s, ok := e.strategies[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q", core.ErrInvalidParams, strategy)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if !doc.HasText() {
		return nil, fmt.Errorf("%w: document %s has no extractable text", core.ErrEmptyDocument, doc.DocID)
	}

	chunks, err := s.Split(doc, p)
	if err != nil {
		return nil, err
	}
	tablePages := doc.TablePages()
	for i := range chunks {
		chunks[i].ID = chunkID(doc.DocID, i)
		chunks[i].Meta.DocID = doc.DocID
		chunks[i].Meta.Strategy = s.Name()
		chunks[i].Meta.Index = i
		chunks[i].Meta.WordCount = core.WordCount(chunks[i].Text)
		for pg := range tablePages {
			if pg >= chunks[i].Meta.PageStart && pg <= chunks[i].Meta.PageEnd {
				chunks[i].Meta.HasTable = true
				break
			}
		}
	}
	return chunks, nil
}

// Strategies lists the registered strategy names.
func (e *Engine) Strategies() []string {
	out := make([]string, 0, len(e.strategies))
	for name := range e.strategies {
		out = append(out, name)
	}
	return out
}

func chunkID(docID string, index int) string {
	return fmt.Sprintf("%s:%d", docID, index)
}
