// Package core holds the domain types and capability interfaces shared by
// the pipeline stages, so higher layers never depend on a concrete backend.
package core

import "strings"

// ChunkMetadata records the provenance of a chunk: which document, pages and
// heading produced it, under which strategy. It is stored alongside the
// vector and echoed back on every search hit.
type ChunkMetadata struct {
	DocID       string   `json:"doc_id"`
	PageStart   int      `json:"page_start"`
	PageEnd     int      `json:"page_end"`
	HeadingPath []string `json:"heading_path,omitempty"`
	Strategy    string   `json:"strategy"`
	Index       int      `json:"index"`
	SpanStart   int      `json:"span_start"`
	SpanEnd     int      `json:"span_end"`
	WordCount   int      `json:"word_count"`
	HasTable    bool     `json:"has_table,omitempty"`
}

// Chunk is one retrievable unit of document text. ID is deterministic for a
// given (document, strategy, params) so re-indexing is idempotent.
type Chunk struct {
	ID   string        `json:"chunk_id"`
	Text string        `json:"text"`
	Meta ChunkMetadata `json:"metadata"`
}

// EmbeddingVector is a fixed-length vector tagged with the chunk or query it
// represents and the model that produced it.
type EmbeddingVector struct {
	ID     string    `json:"id"`
	Model  string    `json:"model"`
	Values []float32 `json:"values"`
}

// SearchResult is one ranked hit from the vector index. Score is the raw
// backend score; ordering is always best-first regardless of metric.
type SearchResult struct {
	ChunkID string        `json:"chunk_id"`
	Score   float64       `json:"score"`
	Rank    int           `json:"rank"`
	Text    string        `json:"text"`
	Meta    ChunkMetadata `json:"metadata"`
}

// WordCount counts whitespace-separated words, the unit used by the
// retrieval word-count filter.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
