// Package pgchunk stores chunks in a single Postgres table with a pgvector
// embedding column and a generated tsvector for keyword search.
package pgchunk

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/talkdb/internal/db"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

// conn is the subset of *sql.DB the repository needs.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repo implements the chunk store over Postgres + pgvector.
type Repo struct {
	conn   conn
	prefix string
	table  string
	dim    int

	mu     sync.Mutex
	schema bool
}

// New creates a repository. The table is named "<prefix>chunks".
func New(c conn, prefix string, dim int) *Repo {
	return &Repo{
		conn:   c,
		prefix: prefix,
		table:  pq.QuoteIdentifier(prefix + "chunks"),
		dim:    dim,
	}
}

// Open connects to Postgres with the lib/pq driver.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return sqlDB, nil
}

// Collection returns the logical collection name of a source.
func (r *Repo) Collection(src source.Source) string {
	return r.prefix + string(src)
}

// EnsureCollection creates the extension, table and indexes on first use.
// All sources share one table, so the source argument only matters for callers.
func (r *Repo) EnsureCollection(ctx context.Context, _ source.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schema {
		return nil
	}

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	path TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}',
	embedding vector(%d) NOT NULL,
	tsv tsvector GENERATED ALWAYS AS (to_tsvector('simple', content)) STORED
)`, r.table, r.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pq.QuoteIdentifier(r.prefix+"chunks_embedding_idx"), r.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING gin (tsv)`,
			pq.QuoteIdentifier(r.prefix+"chunks_tsv_idx"), r.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (source)`,
			pq.QuoteIdentifier(r.prefix+"chunks_source_idx"), r.table),
	}
	for _, stmt := range stmts {
		if _, err := r.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init chunk schema: %w", err)
		}
	}

	r.schema = true
	return nil
}

// Upsert inserts chunks or replaces rows with the same id.
func (r *Repo) Upsert(ctx context.Context, src source.Source, chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("upsert %s: %d chunks but %d vectors", src, len(chunks), len(vectors))
	}
	if err := r.EnsureCollection(ctx, src); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, source, path, content, metadata, embedding)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
	source = EXCLUDED.source,
	path = EXCLUDED.path,
	content = EXCLUDED.content,
	metadata = EXCLUDED.metadata,
	embedding = EXCLUDED.embedding`, r.table)

	for i, c := range chunks {
		if len(vectors[i]) != r.dim {
			return fmt.Errorf("upsert %s: chunk %s has %d dims, table expects %d", src, c.ID(), len(vectors[i]), r.dim)
		}
		meta, err := json.Marshal(c.Metadata())
		if err != nil {
			return fmt.Errorf("encode metadata %s: %w", c.ID(), err)
		}
		_, err = r.conn.ExecContext(ctx, query,
			c.ID(), string(c.Source()), c.Path(), c.Text(), meta, pgvector.NewVector(vectors[i]))
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ID(), err)
		}
	}
	return nil
}

// SearchVector returns the k nearest chunks of a source, scored 1 - cosine distance.
func (r *Repo) SearchVector(ctx context.Context, src source.Source, vector []float32, k int) ([]retrieval.Result, error) {
	query := fmt.Sprintf(`SELECT id, source, path, content, metadata, 1 - (embedding <=> $1) AS score
FROM %s
WHERE source = $2
ORDER BY embedding <=> $1
LIMIT $3`, r.table)

	rows, err := r.conn.QueryContext(ctx, query, pgvector.NewVector(vector), string(src), k)
	if isUndefinedTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vector search %s: %w", src, err)
	}
	return scanResults(rows)
}

// SearchText ranks chunks of a source by ts_rank_cd over an OR of query terms.
func (r *Repo) SearchText(ctx context.Context, src source.Source, text string, k int) ([]retrieval.Result, error) {
	terms := db.QueryTerms(text)
	if len(terms) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT id, source, path, content, metadata, ts_rank_cd(tsv, q) AS score
FROM %s, to_tsquery('simple', $1) q
WHERE source = $2 AND tsv @@ q
ORDER BY score DESC, id
LIMIT $3`, r.table)

	rows, err := r.conn.QueryContext(ctx, query, strings.Join(terms, " | "), string(src), k)
	if isUndefinedTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("text search %s: %w", src, err)
	}
	return scanResults(rows)
}

// Count returns the number of chunks stored for a source.
func (r *Repo) Count(ctx context.Context, src source.Source) (int, error) {
	var n int
	err := r.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s WHERE source = $1`, r.table), string(src)).Scan(&n)
	if isUndefinedTable(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", src, err)
	}
	return n, nil
}

// Purge deletes every chunk of a source and returns how many were removed.
func (r *Repo) Purge(ctx context.Context, src source.Source) (int, error) {
	res, err := r.conn.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE source = $1`, r.table), string(src))
	if isUndefinedTable(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", src, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", src, err)
	}
	return int(n), nil
}

func scanResults(rows *sql.Rows) ([]retrieval.Result, error) {
	defer rows.Close()

	var out []retrieval.Result
	for rows.Next() {
		var (
			id, src, path, content string
			metaJSON               []byte
			score                  float64
		)
		if err := rows.Scan(&id, &src, &path, &content, &metaJSON, &score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		var meta map[string]string
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &meta)
		}
		out = append(out, retrieval.Result{
			Chunk: chunk.Reconstruct(id, content, source.Source(src), path, meta),
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// isUndefinedTable reports SQLSTATE 42P01, i.e. nothing was ingested yet.
func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "42P01"
}
