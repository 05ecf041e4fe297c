package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"ragstack/internal/core"
)

// Postgres is an Index over Postgres with the pgvector extension. A registry
// table records each collection's dimension, metric and model; entries live
// in one table per collection so DROP stays cheap and the vector column can
// carry the collection's exact dimension.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens the database, enables the vector extension and ensures
// the registry table exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &Postgres{db: db}
	if err := p.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS rag_collections (
			name       TEXT PRIMARY KEY,
			dimension  INT NOT NULL,
			metric     TEXT NOT NULL,
			model      TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }

// chunkTable derives the per-collection table name. Collection names are
// sanitized to [a-z0-9_-] before they reach the index, which keeps the
// identifier safe to interpolate.
func chunkTable(collection string) string {
	return "rag_chunks_" + strings.ReplaceAll(collection, "-", "_")
}

func (p *Postgres) CreateCollection(ctx context.Context, name string, dimension int, metric Metric, model string) error {
	if name == "" || dimension <= 0 || !metric.Valid() {
		return fmt.Errorf("%w: collection %q dimension %d metric %q", core.ErrInvalidParams, name, dimension, metric)
	}

	var haveDim int
	var haveMetric, haveModel string
	err := p.db.QueryRowContext(ctx,
		`SELECT dimension, metric, model FROM rag_collections WHERE name = $1`, name).
		Scan(&haveDim, &haveMetric, &haveModel)
	switch {
	case err == nil:
		if haveDim == dimension && Metric(haveMetric) == metric && haveModel == model {
			return nil
		}
		return fmt.Errorf("%w: collection %q", core.ErrAlreadyExists, name)
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("lookup collection %q: %w", name, err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create collection: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rag_collections (name, dimension, metric, model) VALUES ($1, $2, $3, $4)`,
		name, dimension, string(metric), model); err != nil {
		return fmt.Errorf("register collection %q: %w", name, err)
	}
	table := chunkTable(name)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		chunk_id   TEXT PRIMARY KEY,
		doc_id     TEXT NOT NULL,
		strategy   TEXT NOT NULL,
		text       TEXT NOT NULL,
		metadata   JSONB NOT NULL,
		embedding  vector(%d) NOT NULL
	)`, table, dimension)); err != nil {
		return fmt.Errorf("create chunk table for %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_doc_idx ON %s (doc_id, strategy)`, table, table)); err != nil {
		return fmt.Errorf("index chunk table for %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s_emb_idx ON %s USING ivfflat (embedding %s) WITH (lists = 100)`,
		table, table, vectorOps(metric))); err != nil {
		return fmt.Errorf("vector index for %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create collection %q: %w", name, err)
	}
	return nil
}

func vectorOps(metric Metric) string {
	switch metric {
	case MetricL2:
		return "vector_l2_ops"
	case MetricIP:
		return "vector_ip_ops"
	default:
		return "vector_cosine_ops"
	}
}

func (p *Postgres) DropCollection(ctx context.Context, name string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin drop collection: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM rag_collections WHERE name = $1`, name); err != nil {
		return fmt.Errorf("unregister collection %q: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, chunkTable(name))); err != nil {
		return fmt.Errorf("drop chunk table for %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit drop collection %q: %w", name, err)
	}
	return nil
}

func (p *Postgres) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT name FROM rag_collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan collection name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (p *Postgres) DescribeCollection(ctx context.Context, name string) (*CollectionInfo, error) {
	info := CollectionInfo{Name: name}
	var metric string
	err := p.db.QueryRowContext(ctx,
		`SELECT dimension, metric, model FROM rag_collections WHERE name = $1`, name).
		Scan(&info.Dimension, &metric, &info.Model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: collection %q", core.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("describe collection %q: %w", name, err)
	}
	info.Metric = Metric(metric)
	if err := p.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s`, chunkTable(name))).Scan(&info.Count); err != nil {
		return nil, fmt.Errorf("count collection %q: %w", name, err)
	}
	return &info, nil
}

func (p *Postgres) Upsert(ctx context.Context, collection string, entries []Entry) error {
	info, err := p.DescribeCollection(ctx, collection)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if len(e.Vector) != info.Dimension {
			return fmt.Errorf("%w: chunk %q has dimension %d, collection %q expects %d",
				core.ErrDimensionMismatch, e.Chunk.ID, len(e.Vector), collection, info.Dimension)
		}
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (chunk_id, doc_id, strategy, text, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chunk_id) DO UPDATE SET
			doc_id = EXCLUDED.doc_id,
			strategy = EXCLUDED.strategy,
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`, chunkTable(collection)))
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		meta, err := json.Marshal(e.Chunk.Meta)
		if err != nil {
			return fmt.Errorf("marshal metadata for chunk %q: %w", e.Chunk.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.Chunk.ID, e.Chunk.Meta.DocID, e.Chunk.Meta.Strategy,
			e.Chunk.Text, meta, pgvector.NewVector(e.Vector)); err != nil {
			return fmt.Errorf("upsert chunk %q: %w", e.Chunk.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection string, chunkIDs []string) error {
	if _, err := p.DescribeCollection(ctx, collection); err != nil {
		return err
	}
	if len(chunkIDs) == 0 {
		return nil
	}
	if _, err := p.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE chunk_id = ANY($1)`, chunkTable(collection)), chunkIDs); err != nil {
		return fmt.Errorf("delete from %q: %w", collection, err)
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, collection string, vector []float32, topK int, filter *Filter) ([]core.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", core.ErrInvalidParams, topK)
	}
	info, err := p.DescribeCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != info.Dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, collection %q expects %d",
			core.ErrDimensionMismatch, len(vector), collection, info.Dimension)
	}

	// ORDER BY the raw operator ascending: all three pgvector operators
	// put the best match first (<#> is the negated inner product).
	var op string
	switch info.Metric {
	case MetricL2:
		op = "<->"
	case MetricIP:
		op = "<#>"
	default:
		op = "<=>"
	}

	where := []string{}
	args := []any{pgvector.NewVector(vector)}
	if filter != nil && filter.DocID != "" {
		args = append(args, filter.DocID)
		where = append(where, fmt.Sprintf("doc_id = $%d", len(args)))
	}
	if filter != nil && filter.Strategy != "" {
		args = append(args, filter.Strategy)
		where = append(where, fmt.Sprintf("strategy = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = "WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, topK)

	query := fmt.Sprintf(`
		SELECT chunk_id, text, metadata, embedding %s $1 AS distance
		FROM %s %s
		ORDER BY distance ASC
		LIMIT $%d`, op, chunkTable(collection), clause, len(args))

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", collection, err)
	}
	defer rows.Close()

	var results []core.SearchResult
	for rows.Next() {
		var r core.SearchResult
		var meta []byte
		var distance float64
		if err := rows.Scan(&r.ChunkID, &r.Text, &meta, &distance); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal(meta, &r.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for chunk %q: %w", r.ChunkID, err)
		}
		// Convert the operator's distance back to the metric's native
		// score so callers see one convention per metric.
		switch info.Metric {
		case MetricL2:
			r.Score = distance
		case MetricIP:
			r.Score = -distance
		default:
			r.Score = 1 - distance
		}
		r.Rank = len(results) + 1
		results = append(results, r)
	}
	return results, rows.Err()
}
