package retriever

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

// Vector embeds the query and runs a similarity search over one source.
type Vector struct {
	src      source.Source
	store    ChunkSearcher
	embedder Embedder
}

// NewVector creates a vector retriever for src.
func NewVector(src source.Source, store ChunkSearcher, embedder Embedder) *Vector {
	return &Vector{src: src, store: store, embedder: embedder}
}

// Name returns "vector:<source>".
func (v *Vector) Name() string { return "vector:" + string(v.src) }

// Retrieve embeds query and returns the k nearest chunks.
func (v *Vector) Retrieve(ctx context.Context, query string, k int) ([]retrieval.Result, error) {
	emb, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	domain.UsageFromContext(ctx).AddEmbedding(emb.TotalTokens)

	rs, err := v.store.SearchVector(ctx, v.src, emb.Embedding, k)
	if err != nil {
		return nil, err
	}
	return tag(rs, v.Name()), nil
}

// Lexical runs BM25 keyword search over one source.
type Lexical struct {
	src   source.Source
	store ChunkSearcher
}

// NewLexical creates a lexical retriever for src.
func NewLexical(src source.Source, store ChunkSearcher) *Lexical {
	return &Lexical{src: src, store: store}
}

// Name returns "bm25:<source>".
func (l *Lexical) Name() string { return "bm25:" + string(l.src) }

// Retrieve returns the k best keyword matches.
func (l *Lexical) Retrieve(ctx context.Context, query string, k int) ([]retrieval.Result, error) {
	rs, err := l.store.SearchText(ctx, l.src, query, k)
	if err != nil {
		return nil, err
	}
	return tag(rs, l.Name()), nil
}

func tag(rs []retrieval.Result, name string) []retrieval.Result {
	for i := range rs {
		rs[i].Retriever = name
	}
	return rs
}

// Factory builds the retriever set for a request.
type Factory struct {
	store    ChunkSearcher
	embedder Embedder
}

// NewFactory creates a factory over one chunk store.
func NewFactory(store ChunkSearcher, embedder Embedder) *Factory {
	return &Factory{store: store, embedder: embedder}
}

// Build returns one vector retriever per source and, when hybrid is set, a
// lexical retriever right after it. Vector retrievers of one Build share a
// single query embedding.
func (f *Factory) Build(sources []source.Source, hybrid bool) []retrieval.Retriever {
	emb := &onceEmbedder{inner: f.embedder}
	out := make([]retrieval.Retriever, 0, len(sources)*2)
	for _, src := range sources {
		out = append(out, NewVector(src, f.store, emb))
		if hybrid {
			out = append(out, NewLexical(src, f.store))
		}
	}
	return out
}

// onceEmbedder memoizes embeddings per text for the lifetime of one retriever
// set; concurrent callers for the same text wait for the first call.
type onceEmbedder struct {
	inner Embedder

	mu      sync.Mutex
	entries map[string]*onceEntry
}

type onceEntry struct {
	done chan struct{}
	res  domain.EmbeddingResult
	err  error
}

func (o *onceEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	o.mu.Lock()
	if o.entries == nil {
		o.entries = make(map[string]*onceEntry)
	}
	e, ok := o.entries[text]
	if !ok {
		e = &onceEntry{done: make(chan struct{})}
		o.entries[text] = e
	}
	o.mu.Unlock()

	if !ok {
		e.res, e.err = o.inner.Embed(ctx, text)
		close(e.done)
		return e.res, e.err
	}

	select {
	case <-e.done:
		// token usage is reported once, by the first caller
		return domain.EmbeddingResult{Embedding: e.res.Embedding}, e.err
	case <-ctx.Done():
		return domain.EmbeddingResult{}, ctx.Err()
	}
}
