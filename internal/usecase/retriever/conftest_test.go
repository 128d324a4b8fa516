package retriever

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

type mockSearcher struct {
	mu          sync.Mutex
	vectorCalls []source.Source
	textCalls   []string
	err         error
}

func (m *mockSearcher) SearchVector(_ context.Context, src source.Source, _ []float32, k int) ([]retrieval.Result, error) {
	m.mu.Lock()
	m.vectorCalls = append(m.vectorCalls, src)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return results(src, "v", k), nil
}

func (m *mockSearcher) SearchText(_ context.Context, src source.Source, query string, k int) ([]retrieval.Result, error) {
	m.mu.Lock()
	m.textCalls = append(m.textCalls, query)
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return results(src, "t", k), nil
}

func results(src source.Source, prefix string, k int) []retrieval.Result {
	out := make([]retrieval.Result, 0, k)
	for i := range k {
		id := prefix + string(rune('a'+i))
		out = append(out, retrieval.Result{
			Chunk: chunk.Reconstruct(id, "text "+id, src, "p/"+id, nil),
			Score: 1 / float64(i+1),
		})
	}
	return out
}

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	c.calls.Add(1)
	if c.err != nil {
		return domain.EmbeddingResult{}, c.err
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0}, TotalTokens: 4}, nil
}
