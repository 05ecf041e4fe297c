package vectorindex_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragstack/internal/core"
	"ragstack/internal/vectorindex"
	"ragstack/internal/vectorindex/indextest"
)

func TestMemoryConformance(t *testing.T) {
	indextest.RunConformance(t, func(t *testing.T) vectorindex.Index {
		return vectorindex.NewMemory()
	})
}

func TestMemoryTieBreakByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := vectorindex.NewMemory()
	require.NoError(t, idx.CreateCollection(ctx, "docs", 2, vectorindex.MetricCosine, "m"))

	// Identical vectors score identically; insertion order must decide.
	entries := []vectorindex.Entry{
		{Chunk: core.Chunk{ID: "d:0", Meta: core.ChunkMetadata{DocID: "d"}}, Vector: []float32{1, 0}},
		{Chunk: core.Chunk{ID: "d:1", Meta: core.ChunkMetadata{DocID: "d"}}, Vector: []float32{1, 0}},
		{Chunk: core.Chunk{ID: "d:2", Meta: core.ChunkMetadata{DocID: "d"}}, Vector: []float32{1, 0}},
	}
	require.NoError(t, idx.Upsert(ctx, "docs", entries))

	for i := 0; i < 5; i++ {
		results, err := idx.Query(ctx, "docs", []float32{1, 0}, 3, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "d:0", results[0].ChunkID)
		assert.Equal(t, "d:1", results[1].ChunkID)
		assert.Equal(t, "d:2", results[2].ChunkID)
	}
}

func TestMemoryConcurrentWritesAndReads(t *testing.T) {
	ctx := context.Background()
	idx := vectorindex.NewMemory()
	require.NoError(t, idx.CreateCollection(ctx, "docs", 2, vectorindex.MetricCosine, "m"))

	// One chunk ID hammered by writers and a deleter while readers query;
	// run with -race. Last write wins, other entries stay intact.
	require.NoError(t, idx.Upsert(ctx, "docs", []vectorindex.Entry{
		{Chunk: core.Chunk{ID: "stable:0", Meta: core.ChunkMetadata{DocID: "stable"}}, Vector: []float32{0, 1}},
	}))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				err := idx.Upsert(ctx, "docs", []vectorindex.Entry{{
					Chunk:  core.Chunk{ID: "hot:0", Text: fmt.Sprintf("w%d-%d", w, i), Meta: core.ChunkMetadata{DocID: "hot"}},
					Vector: []float32{1, 0},
				}})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			assert.NoError(t, idx.Delete(ctx, "docs", []string{"hot:0"}))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				results, err := idx.Query(ctx, "docs", []float32{1, 0}, 10, nil)
				assert.NoError(t, err)
				assert.LessOrEqual(t, len(results), 2)
			}
		}()
	}
	wg.Wait()

	// A final write settles the contended ID; the untouched entry survived.
	require.NoError(t, idx.Upsert(ctx, "docs", []vectorindex.Entry{{
		Chunk:  core.Chunk{ID: "hot:0", Text: "final", Meta: core.ChunkMetadata{DocID: "hot"}},
		Vector: []float32{1, 0},
	}}))
	info, err := idx.DescribeCollection(ctx, "docs")
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.Count)

	results, err := idx.Query(ctx, "docs", []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "hot:0", results[0].ChunkID)
	assert.Equal(t, "final", results[0].Text)
	assert.Equal(t, "stable:0", results[1].ChunkID)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "report", "report"},
		{"filename", "Q3 Report (final).pdf", "q3_report_final_pdf"},
		{"leading trailing junk", "__hello__", "hello"},
		{"too short", "a", "aab"},
		{"unicode collapses", "résumé", "r_sum"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := vectorindex.SanitizeName(tt.in)
			assert.LessOrEqual(t, len(got), 63)
			assert.GreaterOrEqual(t, len(got), 3)
			assert.Equal(t, tt.want, got)
		})
	}
}
