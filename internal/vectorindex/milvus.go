package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"ragstack/internal/core"
)

// Milvus is an Index over a Milvus cluster. Chunk IDs are the VarChar
// primary key, so re-upserting a chunk replaces it. The collection metric
// and embedding model ride along in the schema description, which Milvus
// itself does not model.
type Milvus struct {
	client    *milvusclient.Client
	indexMode string
}

// MilvusConfig carries the connection settings and the vector index type
// (flat, ivf_flat or hnsw) applied to every new collection.
type MilvusConfig struct {
	Address   string
	Username  string
	Password  string
	Database  string
	IndexMode string
}

// NewMilvus connects to the cluster.
func NewMilvus(ctx context.Context, cfg MilvusConfig) (*Milvus, error) {
	cli, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to milvus: %w", err)
	}
	mode := cfg.IndexMode
	if mode == "" {
		mode = "ivf_flat"
	}
	return &Milvus{client: cli, indexMode: mode}, nil
}

// Close terminates the connection.
func (m *Milvus) Close(ctx context.Context) error { return m.client.Close(ctx) }

// collectionMeta is what the schema description carries.
type collectionMeta struct {
	Metric Metric `json:"metric"`
	Model  string `json:"model"`
}

func milvusMetric(metric Metric) entity.MetricType {
	switch metric {
	case MetricL2:
		return entity.L2
	case MetricIP:
		return entity.IP
	default:
		return entity.COSINE
	}
}

func (m *Milvus) vectorIndex(metric Metric) index.Index {
	mt := milvusMetric(metric)
	switch m.indexMode {
	case "flat":
		return index.NewFlatIndex(mt)
	case "hnsw":
		return index.NewHNSWIndex(mt, 16, 500)
	default:
		return index.NewIvfFlatIndex(mt, 1024)
	}
}

func (m *Milvus) CreateCollection(ctx context.Context, name string, dimension int, metric Metric, model string) error {
	if name == "" || dimension <= 0 || !metric.Valid() {
		return fmt.Errorf("%w: collection %q dimension %d metric %q", core.ErrInvalidParams, name, dimension, metric)
	}

	exists, err := m.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return fmt.Errorf("check collection %q: %w", name, err)
	}
	if exists {
		info, err := m.DescribeCollection(ctx, name)
		if err != nil {
			return err
		}
		if info.Dimension == dimension && info.Metric == metric && info.Model == model {
			return nil
		}
		return fmt.Errorf("%w: collection %q", core.ErrAlreadyExists, name)
	}

	desc, err := json.Marshal(collectionMeta{Metric: metric, Model: model})
	if err != nil {
		return fmt.Errorf("encode collection meta: %w", err)
	}
	schema := entity.NewSchema().
		WithName(name).
		WithDescription(string(desc)).
		WithField(entity.NewField().
			WithName("chunk_id").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(256).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName("embedding").
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dimension))).
		WithField(entity.NewField().
			WithName("doc_id").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(256)).
		WithField(entity.NewField().
			WithName("strategy").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64)).
		WithField(entity.NewField().
			WithName("text").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535)).
		WithField(entity.NewField().
			WithName("metadata").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(8192))

	if err := m.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema)); err != nil {
		return fmt.Errorf("create collection %q: %w", name, err)
	}
	idxTask, err := m.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, "embedding", m.vectorIndex(metric)))
	if err != nil {
		return fmt.Errorf("create index on %q: %w", name, err)
	}
	if err := idxTask.Await(ctx); err != nil {
		return fmt.Errorf("await index on %q: %w", name, err)
	}
	loadTask, err := m.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("load collection %q: %w", name, err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("await load of %q: %w", name, err)
	}
	return nil
}

func (m *Milvus) DropCollection(ctx context.Context, name string) error {
	if err := m.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
		return fmt.Errorf("drop collection %q: %w", name, err)
	}
	return nil
}

func (m *Milvus) ListCollections(ctx context.Context) ([]string, error) {
	names, err := m.client.ListCollections(ctx, milvusclient.NewListCollectionOption())
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

func (m *Milvus) DescribeCollection(ctx context.Context, name string) (*CollectionInfo, error) {
	exists, err := m.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return nil, fmt.Errorf("check collection %q: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: collection %q", core.ErrNotFound, name)
	}
	col, err := m.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(name))
	if err != nil {
		return nil, fmt.Errorf("describe collection %q: %w", name, err)
	}

	info := &CollectionInfo{Name: name, Metric: MetricCosine}
	var meta collectionMeta
	if err := json.Unmarshal([]byte(col.Schema.Description), &meta); err == nil {
		info.Metric = meta.Metric
		info.Model = meta.Model
	}
	for _, f := range col.Schema.Fields {
		if f.Name != "embedding" {
			continue
		}
		if dim, ok := f.TypeParams[entity.TypeParamDim]; ok {
			info.Dimension, _ = strconv.Atoi(dim)
		}
	}

	stats, err := m.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(name))
	if err != nil {
		return nil, fmt.Errorf("collection stats for %q: %w", name, err)
	}
	if val, ok := stats["row_count"]; ok {
		info.Count, _ = strconv.ParseInt(val, 10, 64)
	}
	return info, nil
}

func (m *Milvus) Upsert(ctx context.Context, collection string, entries []Entry) error {
	info, err := m.DescribeCollection(ctx, collection)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if len(e.Vector) != info.Dimension {
			return fmt.Errorf("%w: chunk %q has dimension %d, collection %q expects %d",
				core.ErrDimensionMismatch, e.Chunk.ID, len(e.Vector), collection, info.Dimension)
		}
	}
	if len(entries) == 0 {
		return nil
	}

	ids := make([]string, len(entries))
	vectors := make([][]float32, len(entries))
	docIDs := make([]string, len(entries))
	strategies := make([]string, len(entries))
	texts := make([]string, len(entries))
	metas := make([]string, len(entries))
	for i, e := range entries {
		meta, err := json.Marshal(e.Chunk.Meta)
		if err != nil {
			return fmt.Errorf("marshal metadata for chunk %q: %w", e.Chunk.ID, err)
		}
		ids[i] = e.Chunk.ID
		vectors[i] = e.Vector
		docIDs[i] = e.Chunk.Meta.DocID
		strategies[i] = e.Chunk.Meta.Strategy
		texts[i] = e.Chunk.Text
		metas[i] = string(meta)
	}

	_, err = m.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collection,
		column.NewColumnVarChar("chunk_id", ids),
		column.NewColumnFloatVector("embedding", info.Dimension, vectors),
		column.NewColumnVarChar("doc_id", docIDs),
		column.NewColumnVarChar("strategy", strategies),
		column.NewColumnVarChar("text", texts),
		column.NewColumnVarChar("metadata", metas),
	))
	if err != nil {
		return fmt.Errorf("upsert into %q: %w", collection, err)
	}

	flushTask, err := m.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return fmt.Errorf("flush %q: %w", collection, err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("await flush of %q: %w", collection, err)
	}
	return nil
}

func (m *Milvus) Delete(ctx context.Context, collection string, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	if _, err := m.client.Delete(ctx, milvusclient.NewDeleteOption(collection).
		WithStringIDs("chunk_id", chunkIDs)); err != nil {
		return fmt.Errorf("delete from %q: %w", collection, err)
	}
	return nil
}

func (m *Milvus) Query(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]core.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", core.ErrInvalidParams, topK)
	}
	info, err := m.DescribeCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != info.Dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection %q expects %d",
			core.ErrDimensionMismatch, len(vector), collection, info.Dimension)
	}

	loadTask, err := m.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collection))
	if err != nil {
		return nil, fmt.Errorf("load collection %q: %w", collection, err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return nil, fmt.Errorf("await load of %q: %w", collection, err)
	}

	opt := milvusclient.NewSearchOption(collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField("embedding").
		WithOutputFields("text", "metadata")
	if expr := filterExpr(filter); expr != "" {
		opt = opt.WithFilter(expr)
	}

	sets, err := m.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", collection, err)
	}
	if len(sets) == 0 {
		return nil, nil
	}

	set := sets[0]
	var results []core.SearchResult
	for i := 0; i < set.ResultCount; i++ {
		r := core.SearchResult{Score: float64(set.Scores[i]), Rank: i + 1}
		if idCol, ok := set.IDs.(*column.ColumnVarChar); ok {
			r.ChunkID = idCol.Data()[i]
		}
		for _, field := range set.Fields {
			col, ok := field.(*column.ColumnVarChar)
			if !ok {
				continue
			}
			switch col.Name() {
			case "text":
				r.Text = col.Data()[i]
			case "metadata":
				if err := json.Unmarshal([]byte(col.Data()[i]), &r.Meta); err != nil {
					return nil, fmt.Errorf("unmarshal metadata for chunk %q: %w", r.ChunkID, err)
				}
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// filterExpr renders the pushdown filter as a Milvus boolean expression.
func filterExpr(filter *Filter) string {
	if filter == nil {
		return ""
	}
	var terms []string
	if filter.DocID != "" {
		terms = append(terms, fmt.Sprintf("doc_id == %q", escapeExpr(filter.DocID)))
	}
	if filter.Strategy != "" {
		terms = append(terms, fmt.Sprintf("strategy == %q", escapeExpr(filter.Strategy)))
	}
	return strings.Join(terms, " && ")
}

func escapeExpr(s string) string {
	return strings.ReplaceAll(s, `"`, ``)
}
