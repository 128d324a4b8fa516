// Package memchunk is an in-process chunk store for local runs and tests:
// brute-force cosine similarity plus Okapi BM25 over the stored text.
package memchunk

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/kailas-cloud/talkdb/internal/db"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

// BM25 parameters.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type entry struct {
	chunk  chunk.Chunk
	vector []float32
	terms  map[string]int
	length int
}

type collection struct {
	entries map[string]*entry
}

// Repo is a concurrency-safe in-memory chunk store.
type Repo struct {
	prefix string
	dim    int

	mu          sync.RWMutex
	collections map[source.Source]*collection
}

// New creates an empty store.
func New(prefix string, dim int) *Repo {
	return &Repo{prefix: prefix, dim: dim, collections: make(map[source.Source]*collection)}
}

// Collection returns the collection name of a source.
func (r *Repo) Collection(src source.Source) string {
	return r.prefix + string(src)
}

// EnsureCollection creates the source collection if missing.
func (r *Repo) EnsureCollection(_ context.Context, src source.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensure(src)
	return nil
}

func (r *Repo) ensure(src source.Source) *collection {
	c, ok := r.collections[src]
	if !ok {
		c = &collection{entries: make(map[string]*entry)}
		r.collections[src] = c
	}
	return c
}

// Upsert stores chunks keyed by id.
func (r *Repo) Upsert(_ context.Context, src source.Source, chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("upsert %s: %d chunks but %d vectors", src, len(chunks), len(vectors))
	}
	for i, c := range chunks {
		if r.dim > 0 && len(vectors[i]) != r.dim {
			return fmt.Errorf("upsert %s: chunk %s has %d dims, store expects %d", src, c.ID(), len(vectors[i]), r.dim)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	col := r.ensure(src)
	for i, c := range chunks {
		terms, n := termFreq(c.Text())
		col.entries[c.ID()] = &entry{
			chunk:  c,
			vector: slices.Clone(vectors[i]),
			terms:  terms,
			length: n,
		}
	}
	return nil
}

// SearchVector ranks chunks by cosine similarity.
func (r *Repo) SearchVector(_ context.Context, src source.Source, vector []float32, k int) ([]retrieval.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	col, ok := r.collections[src]
	if !ok {
		return nil, nil
	}
	out := make([]retrieval.Result, 0, len(col.entries))
	for _, e := range col.entries {
		out = append(out, retrieval.Result{Chunk: e.chunk, Score: cosine(vector, e.vector)})
	}
	return topK(out, k), nil
}

// SearchText ranks chunks by BM25 over the query terms.
func (r *Repo) SearchText(_ context.Context, src source.Source, query string, k int) ([]retrieval.Result, error) {
	terms := db.QueryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	col, ok := r.collections[src]
	if !ok || len(col.entries) == 0 {
		return nil, nil
	}

	n := float64(len(col.entries))
	var total int
	df := make(map[string]int, len(terms))
	for _, e := range col.entries {
		total += e.length
		for _, t := range terms {
			if e.terms[t] > 0 {
				df[t]++
			}
		}
	}
	avgLen := float64(total) / n

	var out []retrieval.Result
	for _, e := range col.entries {
		var score float64
		for _, t := range terms {
			tf := float64(e.terms[t])
			if tf == 0 {
				continue
			}
			idf := math.Log((n-float64(df[t])+0.5)/(float64(df[t])+0.5) + 1.0)
			score += idf * tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(e.length)/avgLen))
		}
		if score > 0 {
			out = append(out, retrieval.Result{Chunk: e.chunk, Score: score})
		}
	}
	return topK(out, k), nil
}

// Count returns the number of chunks in a source.
func (r *Repo) Count(_ context.Context, src source.Source) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if col, ok := r.collections[src]; ok {
		return len(col.entries), nil
	}
	return 0, nil
}

// Purge removes the source collection.
func (r *Repo) Purge(_ context.Context, src source.Source) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	col, ok := r.collections[src]
	if !ok {
		return 0, nil
	}
	delete(r.collections, src)
	return len(col.entries), nil
}

// topK sorts by score descending, then id, and truncates.
func topK(rs []retrieval.Result, k int) []retrieval.Result {
	slices.SortFunc(rs, func(a, b retrieval.Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Chunk.ID(), b.Chunk.ID())
	})
	if k >= 0 && len(rs) > k {
		rs = rs[:k]
	}
	return rs
}

func termFreq(text string) (map[string]int, int) {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tf := make(map[string]int, len(fields))
	for _, f := range fields {
		tf[f]++
	}
	return tf, len(fields)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
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
