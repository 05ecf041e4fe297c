// Package indextest exercises any vectorindex.Index implementation against
// the shared contract. Backend packages call RunConformance from their own
// tests, so the in-memory, Postgres and Milvus backends all face the same
// assertions.
package indextest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragstack/internal/core"
	"ragstack/internal/vectorindex"
)

// Factory returns a fresh, empty index for one subtest.
type Factory func(t *testing.T) vectorindex.Index

func entry(id, docID, strategy string, vec []float32) vectorindex.Entry {
	return vectorindex.Entry{
		Chunk: core.Chunk{
			ID:   id,
			Text: "text of " + id,
			Meta: core.ChunkMetadata{DocID: docID, Strategy: strategy},
		},
		Vector: vec,
	}
}

// RunConformance runs the full contract suite against indexes built by the
// factory.
func RunConformance(t *testing.T, factory Factory) {
	ctx := context.Background()

	t.Run("create is idempotent for identical config", func(t *testing.T) {
		idx := factory(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricCosine, "model-a"))
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricCosine, "model-a"))

		err := idx.CreateCollection(ctx, "docs", 4, vectorindex.MetricCosine, "model-a")
		assert.ErrorIs(t, err, core.ErrAlreadyExists)
		err = idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricL2, "model-a")
		assert.ErrorIs(t, err, core.ErrAlreadyExists)
		err = idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricCosine, "model-b")
		assert.ErrorIs(t, err, core.ErrAlreadyExists)
	})

	t.Run("describe reports config and count", func(t *testing.T) {
		idx := factory(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricCosine, "model-a"))
		require.NoError(t, idx.Upsert(ctx, "docs", []vectorindex.Entry{
			entry("d1:0", "d1", "fixed_size", []float32{1, 0, 0}),
			entry("d1:1", "d1", "fixed_size", []float32{0, 1, 0}),
		}))

		info, err := idx.DescribeCollection(ctx, "docs")
		require.NoError(t, err)
		assert.Equal(t, 3, info.Dimension)
		assert.Equal(t, vectorindex.MetricCosine, info.Metric)
		assert.Equal(t, "model-a", info.Model)
		assert.EqualValues(t, 2, info.Count)

		_, err = idx.DescribeCollection(ctx, "missing")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("upsert rejects wrong dimension atomically", func(t *testing.T) {
		idx := factory(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricCosine, "model-a"))

		err := idx.Upsert(ctx, "docs", []vectorindex.Entry{
			entry("d1:0", "d1", "fixed_size", []float32{1, 0, 0}),
			entry("d1:1", "d1", "fixed_size", []float32{1, 0}),
		})
		require.ErrorIs(t, err, core.ErrDimensionMismatch)

		info, err := idx.DescribeCollection(ctx, "docs")
		require.NoError(t, err)
		assert.EqualValues(t, 0, info.Count, "failed batch must not partially apply")
	})

	t.Run("upsert replaces by chunk id", func(t *testing.T) {
		idx := factory(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricCosine, "model-a"))
		require.NoError(t, idx.Upsert(ctx, "docs", []vectorindex.Entry{
			entry("d1:0", "d1", "fixed_size", []float32{1, 0, 0}),
		}))
		require.NoError(t, idx.Upsert(ctx, "docs", []vectorindex.Entry{
			entry("d1:0", "d1", "fixed_size", []float32{0, 1, 0}),
		}))

		info, err := idx.DescribeCollection(ctx, "docs")
		require.NoError(t, err)
		assert.EqualValues(t, 1, info.Count)

		results, err := idx.Query(ctx, "docs", []float32{0, 1, 0}, 1, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "d1:0", results[0].ChunkID)
	})

	t.Run("query returns best first with ranks", func(t *testing.T) {
		idx := factory(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricCosine, "model-a"))
		require.NoError(t, idx.Upsert(ctx, "docs", []vectorindex.Entry{
			entry("d1:0", "d1", "fixed_size", []float32{1, 0, 0}),
			entry("d1:1", "d1", "fixed_size", []float32{0.9, 0.1, 0}),
			entry("d1:2", "d1", "fixed_size", []float32{0, 0, 1}),
		}))

		results, err := idx.Query(ctx, "docs", []float32{1, 0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "d1:0", results[0].ChunkID)
		assert.Equal(t, "d1:1", results[1].ChunkID)
		assert.Equal(t, 1, results[0].Rank)
		assert.Equal(t, 2, results[1].Rank)
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	})

	t.Run("query never pads past the collection size", func(t *testing.T) {
		idx := factory(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricCosine, "model-a"))
		require.NoError(t, idx.Upsert(ctx, "docs", []vectorindex.Entry{
			entry("d1:0", "d1", "fixed_size", []float32{1, 0, 0}),
			entry("d1:1", "d1", "fixed_size", []float32{0, 1, 0}),
			entry("d1:2", "d1", "fixed_size", []float32{0, 0, 1}),
		}))

		results, err := idx.Query(ctx, "docs", []float32{1, 0, 0}, 5, nil)
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("exact vector round trips to the top", func(t *testing.T) {
		idx := factory(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricCosine, "model-a"))
		require.NoError(t, idx.Upsert(ctx, "docs", []vectorindex.Entry{
			entry("d1:0", "d1", "fixed_size", []float32{0.2, 0.5, 0.8}),
			entry("d1:1", "d1", "fixed_size", []float32{0.9, 0.1, 0.3}),
		}))

		results, err := idx.Query(ctx, "docs", []float32{0.9, 0.1, 0.3}, 1, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "d1:1", results[0].ChunkID)
	})

	t.Run("query validates input", func(t *testing.T) {
		idx := factory(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricCosine, "model-a"))

		_, err := idx.Query(ctx, "docs", []float32{1, 0, 0}, 0, nil)
		assert.ErrorIs(t, err, core.ErrInvalidParams)
		_, err = idx.Query(ctx, "docs", []float32{1, 0}, 1, nil)
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
		_, err = idx.Query(ctx, "missing", []float32{1, 0, 0}, 1, nil)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("filter narrows results", func(t *testing.T) {
		idx := factory(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricCosine, "model-a"))
		require.NoError(t, idx.Upsert(ctx, "docs", []vectorindex.Entry{
			entry("a:0", "a", "fixed_size", []float32{1, 0, 0}),
			entry("b:0", "b", "fixed_size", []float32{1, 0, 0}),
			entry("a:1", "a", "page_based", []float32{1, 0, 0}),
		}))

		results, err := idx.Query(ctx, "docs", []float32{1, 0, 0}, 10, &vectorindex.Filter{DocID: "a"})
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, r := range results {
			assert.Equal(t, "a", r.Meta.DocID)
		}

		results, err = idx.Query(ctx, "docs", []float32{1, 0, 0}, 10,
			&vectorindex.Filter{DocID: "a", Strategy: "page_based"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "a:1", results[0].ChunkID)
	})

	t.Run("delete ignores missing ids", func(t *testing.T) {
		idx := factory(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricCosine, "model-a"))
		require.NoError(t, idx.Upsert(ctx, "docs", []vectorindex.Entry{
			entry("d1:0", "d1", "fixed_size", []float32{1, 0, 0}),
		}))
		require.NoError(t, idx.Delete(ctx, "docs", []string{"d1:0", "never-there"}))

		info, err := idx.DescribeCollection(ctx, "docs")
		require.NoError(t, err)
		assert.EqualValues(t, 0, info.Count)
	})

	t.Run("drop is a no-op on missing collections", func(t *testing.T) {
		idx := factory(t)
		require.NoError(t, idx.CreateCollection(ctx, "docs", 3, vectorindex.MetricCosine, "model-a"))
		require.NoError(t, idx.DropCollection(ctx, "docs"))
		require.NoError(t, idx.DropCollection(ctx, "docs"))

		_, err := idx.DescribeCollection(ctx, "docs")
		assert.ErrorIs(t, err, core.ErrNotFound)

		// The name is free again for a different config.
		require.NoError(t, idx.CreateCollection(ctx, "docs", 5, vectorindex.MetricL2, "model-b"))
	})

	t.Run("l2 orders ascending", func(t *testing.T) {
		idx := factory(t)
		require.NoError(t, idx.CreateCollection(ctx, "l2docs", 2, vectorindex.MetricL2, "model-a"))
		require.NoError(t, idx.Upsert(ctx, "l2docs", []vectorindex.Entry{
			entry("x:0", "x", "fixed_size", []float32{0, 0}),
			entry("x:1", "x", "fixed_size", []float32{3, 4}),
		}))

		results, err := idx.Query(ctx, "l2docs", []float32{0, 0}, 2, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "x:0", results[0].ChunkID)
		assert.LessOrEqual(t, results[0].Score, results[1].Score)
	})

	t.Run("list is sorted and complete", func(t *testing.T) {
		idx := factory(t)
		for _, name := range []string{"beta", "alpha", "gamma"} {
			require.NoError(t, idx.CreateCollection(ctx, name, 2, vectorindex.MetricCosine,
				fmt.Sprintf("model-%s", name)))
		}
		names, err := idx.ListCollections(ctx)
		require.NoError(t, err)
		assert.Subset(t, names, []string{"alpha", "beta", "gamma"})
	})
}
