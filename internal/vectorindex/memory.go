package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"ragstack/internal/core"
)

// Memory is an in-process Index for tests and single-node deployments.
// Queries scan every entry; ties break by insertion order, so repeated
// queries over the same data are stable.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	info    CollectionInfo
	entries map[string]*memEntry
	nextSeq uint64
}

type memEntry struct {
	entry Entry
	seq   uint64
}

// NewMemory returns an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

func (m *Memory) CreateCollection(_ context.Context, name string, dimension int, metric Metric, model string) error {
	if name == "" || dimension <= 0 || !metric.Valid() {
		return fmt.Errorf("%w: collection %q dimension %d metric %q", core.ErrInvalidParams, name, dimension, metric)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.collections[name]; ok {
		if existing.info.Dimension == dimension && existing.info.Metric == metric && existing.info.Model == model {
			return nil
		}
		return fmt.Errorf("%w: collection %q", core.ErrAlreadyExists, name)
	}
	m.collections[name] = &memCollection{
		info:    CollectionInfo{Name: name, Dimension: dimension, Metric: metric, Model: model},
		entries: make(map[string]*memEntry),
	}
	return nil
}

func (m *Memory) DropCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

func (m *Memory) ListCollections(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) DescribeCollection(_ context.Context, name string) (*CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: collection %q", core.ErrNotFound, name)
	}
	info := col.info
	info.Count = int64(len(col.entries))
	return &info, nil
}

func (m *Memory) Upsert(_ context.Context, collection string, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("%w: collection %q", core.ErrNotFound, collection)
	}
	// Validate every vector before touching state, so a bad batch leaves
	// the collection exactly as it was.
	for _, e := range entries {
		if len(e.Vector) != col.info.Dimension {
			return fmt.Errorf("%w: chunk %q has dimension %d, collection %q expects %d",
				core.ErrDimensionMismatch, e.Chunk.ID, len(e.Vector), collection, col.info.Dimension)
		}
	}
	for _, e := range entries {
		if prev, ok := col.entries[e.Chunk.ID]; ok {
			prev.entry = e
			continue
		}
		col.entries[e.Chunk.ID] = &memEntry{entry: e, seq: col.nextSeq}
		col.nextSeq++
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, collection string, chunkIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("%w: collection %q", core.ErrNotFound, collection)
	}
	for _, id := range chunkIDs {
		delete(col.entries, id)
	}
	return nil
}

func (m *Memory) Query(_ context.Context, collection string, vector []float32, topK int, filter *Filter) ([]core.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", core.ErrInvalidParams, topK)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: collection %q", core.ErrNotFound, collection)
	}
	if len(vector) != col.info.Dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection %q expects %d",
			core.ErrDimensionMismatch, len(vector), collection, col.info.Dimension)
	}

	type scored struct {
		entry *memEntry
		score float64
	}
	var candidates []scored
	for _, e := range col.entries {
		if !filter.Matches(e.entry.Chunk.Meta) {
			continue
		}
		candidates = append(candidates, scored{entry: e, score: score(col.info.Metric, vector, e.entry.Vector)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return col.info.Metric.Better(candidates[i].score, candidates[j].score)
		}
		return candidates[i].entry.seq < candidates[j].entry.seq
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]core.SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = core.SearchResult{
			ChunkID: c.entry.entry.Chunk.ID,
			Score:   c.score,
			Rank:    i + 1,
			Text:    c.entry.entry.Chunk.Text,
			Meta:    c.entry.entry.Chunk.Meta,
		}
	}
	return results, nil
}

// score computes the raw similarity under the metric: cosine similarity and
// inner product grow with relatedness, L2 distance shrinks.
func score(metric Metric, a, b []float32) float64 {
	switch metric {
	case MetricL2:
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return math.Sqrt(sum)
	case MetricIP:
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return dot
	default:
		var dot, na, nb float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
		if na == 0 || nb == 0 {
			return 0
		}
		return dot / (math.Sqrt(na) * math.Sqrt(nb))
	}
}
