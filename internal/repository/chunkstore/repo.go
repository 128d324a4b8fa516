package chunkstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/kailas-cloud/talkdb/internal/db"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

// Hash field names of a stored chunk.
const (
	fieldID      = "id"
	fieldContent = "content"
	fieldSource  = "source"
	fieldPath    = "path"
	fieldMeta    = "meta"
	fieldVector  = "vector"
)

var returnFields = []string{fieldID, fieldContent, fieldSource, fieldPath, fieldMeta}

// store is the consumer interface over db.Store (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
	DropIndex(ctx context.Context, name string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
}

const delBatch = 500

// HNSWConfig holds HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo keeps one FT index per source over HASH keys "<prefix><source>:<chunk id>".
type Repo struct {
	store  store
	prefix string
	dim    int
	hnsw   HNSWConfig

	mu    sync.Mutex
	ready map[source.Source]bool
}

// New creates a Redis chunk repository.
func New(s store, prefix string, dim int) *Repo {
	return &Repo{store: s, prefix: prefix, dim: dim, ready: make(map[source.Source]bool)}
}

// WithHNSW sets custom HNSW parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// Collection returns the index name of a source.
func (r *Repo) Collection(src source.Source) string {
	return r.prefix + string(src)
}

func (r *Repo) keyPrefix(src source.Source) string {
	return r.Collection(src) + ":"
}

// EnsureCollection creates the source index if missing.
func (r *Repo) EnsureCollection(ctx context.Context, src source.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready[src] {
		return nil
	}

	name := r.Collection(src)
	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if !exists {
		def, err := db.NewIndex(name).
			Prefix(r.keyPrefix(src)).
			Tag(fieldSource).
			Text(fieldContent).
			VectorHNSW(fieldVector, r.dim, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
			Build()
		if err != nil {
			return fmt.Errorf("build index %s: %w", name, err)
		}
		if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
			return fmt.Errorf("create index %s: %w", name, err)
		}
	}

	r.ready[src] = true
	return nil
}

// Upsert writes chunks with their vectors. Keys derive from chunk ids, so a
// repeated upsert of the same content overwrites in place.
func (r *Repo) Upsert(ctx context.Context, src source.Source, chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("upsert %s: %d chunks but %d vectors", src, len(chunks), len(vectors))
	}
	if err := r.EnsureCollection(ctx, src); err != nil {
		return err
	}

	items := make([]db.HashSetItem, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != r.dim {
			return fmt.Errorf("upsert %s: chunk %s has %d dims, index expects %d", src, c.ID(), len(vectors[i]), r.dim)
		}
		meta, err := json.Marshal(c.Metadata())
		if err != nil {
			return fmt.Errorf("encode metadata %s: %w", c.ID(), err)
		}
		items[i] = db.HashSetItem{
			Key: r.keyPrefix(src) + c.ID(),
			Fields: map[string]string{
				fieldID:      c.ID(),
				fieldContent: c.Text(),
				fieldSource:  string(c.Source()),
				fieldPath:    c.Path(),
				fieldMeta:    string(meta),
				fieldVector:  vectorToBytes(vectors[i]),
			},
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %s: %w", src, err)
	}
	return nil
}

// SearchVector returns the k nearest chunks by cosine similarity.
// A source that was never ingested yields no results.
func (r *Repo) SearchVector(ctx context.Context, src source.Source, vector []float32, k int) ([]retrieval.Result, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.Collection(src),
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	})
	if errors.Is(err, db.ErrIndexNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vector search %s: %w", src, err)
	}
	return r.toResults(src, sr), nil
}

// SearchText returns the k best BM25 matches.
func (r *Repo) SearchText(ctx context.Context, src source.Source, query string, k int) ([]retrieval.Result, error) {
	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.Collection(src),
		Field:        fieldContent,
		Query:        query,
		TopK:         k,
		ReturnFields: returnFields,
	})
	if errors.Is(err, db.ErrIndexNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("text search %s: %w", src, err)
	}
	return r.toResults(src, sr), nil
}

// Count returns the number of chunks stored for a source.
func (r *Repo) Count(ctx context.Context, src source.Source) (int, error) {
	n, err := r.store.SearchCount(ctx, r.Collection(src), "*")
	if errors.Is(err, db.ErrIndexNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", src, err)
	}
	return n, nil
}

// Purge drops the source index and deletes its chunk hashes. It returns the
// number of deleted chunks; the index is recreated by the next upsert.
func (r *Repo) Purge(ctx context.Context, src source.Source) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := r.Collection(src)
	if err := r.store.DropIndex(ctx, name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return 0, fmt.Errorf("drop index %s: %w", name, err)
	}
	delete(r.ready, src)

	keys, err := r.store.Scan(ctx, r.keyPrefix(src)+"*")
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", name, err)
	}
	for i := 0; i < len(keys); i += delBatch {
		if err := r.store.Del(ctx, keys[i:min(i+delBatch, len(keys))]...); err != nil {
			return i, fmt.Errorf("delete %s chunks: %w", name, err)
		}
	}
	return len(keys), nil
}

func (r *Repo) toResults(src source.Source, sr *db.SearchResult) []retrieval.Result {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	prefix := r.keyPrefix(src)
	out := make([]retrieval.Result, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id := e.Fields[fieldID]
		if id == "" {
			id = strings.TrimPrefix(e.Key, prefix)
		}
		var meta map[string]string
		if raw := e.Fields[fieldMeta]; raw != "" {
			_ = json.Unmarshal([]byte(raw), &meta) // metadata is best-effort
		}
		s := source.Source(e.Fields[fieldSource])
		if s == "" {
			s = src
		}
		out = append(out, retrieval.Result{
			Chunk: chunk.Reconstruct(id, e.Fields[fieldContent], s, e.Fields[fieldPath], meta),
			Score: e.Score,
		})
	}
	return out
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
