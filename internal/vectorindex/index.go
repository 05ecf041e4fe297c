// Package vectorindex abstracts a similarity-search store behind one
// contract, so an embedded in-memory index, a pgvector-backed Postgres and a
// Milvus cluster are interchangeable. Every backend returns query results
// best-first regardless of the collection metric.
package vectorindex

import (
	"context"
	"regexp"
	"strings"

	"ragstack/internal/core"
)

// Metric is the distance function fixed at collection creation.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
	MetricIP     Metric = "ip"
)

// LowerIsBetter reports the sort direction of raw scores under this metric.
func (m Metric) LowerIsBetter() bool { return m == MetricL2 }

// Better reports whether score a beats score b under this metric.
func (m Metric) Better(a, b float64) bool {
	if m.LowerIsBetter() {
		return a < b
	}
	return a > b
}

// Valid reports whether m names a supported metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricL2, MetricIP:
		return true
	}
	return false
}

// CollectionInfo describes a collection: its identity (dimension, metric,
// embedding model) and current entry count.
type CollectionInfo struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    Metric `json:"metric"`
	Model     string `json:"model"`
	Count     int64  `json:"count"`
}

// Entry pairs a chunk with its embedding vector for upsert.
type Entry struct {
	Chunk  core.Chunk
	Vector []float32
}

// Filter restricts a query to entries matching all set fields. It is pushed
// down to the backend; richer predicates belong to the retrieval layer.
type Filter struct {
	DocID    string `json:"doc_id,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

// Matches reports whether the metadata satisfies the filter.
func (f *Filter) Matches(meta core.ChunkMetadata) bool {
	if f == nil {
		return true
	}
	if f.DocID != "" && meta.DocID != f.DocID {
		return false
	}
	if f.Strategy != "" && meta.Strategy != f.Strategy {
		return false
	}
	return true
}

// Index is the backend-agnostic vector store contract.
//
// CreateCollection is idempotent for an identical (dimension, metric, model)
// and fails with core.ErrAlreadyExists otherwise. Upsert overwrites entries
// sharing a chunk ID; if any vector disagrees with the collection dimension
// it fails with core.ErrDimensionMismatch and leaves the collection
// unchanged. Delete ignores missing IDs. Query returns at most topK results
// best-first and fails with core.ErrInvalidParams for topK <= 0.
// DropCollection of a missing collection is a no-op.
type Index interface {
	CreateCollection(ctx context.Context, name string, dimension int, metric Metric, model string) error
	DropCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]string, error)
	DescribeCollection(ctx context.Context, name string) (*CollectionInfo, error)
	Upsert(ctx context.Context, collection string, entries []Entry) error
	Delete(ctx context.Context, collection string, chunkIDs []string) error
	Query(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]core.SearchResult, error)
}

var (
	nameIllegal   = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	nameSqueeze   = regexp.MustCompile(`_+`)
	nameTrimHead  = regexp.MustCompile(`^[^a-zA-Z0-9]+`)
	nameTrimTail  = regexp.MustCompile(`[^a-zA-Z0-9]+$`)
	maxNameLength = 63
)

// SanitizeName normalizes a collection name derived from user input such as
// a filename: illegal characters collapse to underscores, the ends are
// trimmed to alphanumerics, and the result is padded to at least 3 and
// capped at 63 characters.
func SanitizeName(name string) string {
	name = nameIllegal.ReplaceAllString(name, "_")
	name = nameSqueeze.ReplaceAllString(name, "_")
	name = nameTrimHead.ReplaceAllString(name, "")
	name = nameTrimTail.ReplaceAllString(name, "")
	if len(name) < 3 {
		name = (name + "abc")[:3]
	}
	if len(name) > maxNameLength {
		name = name[:maxNameLength]
	}
	return strings.ToLower(name)
}
