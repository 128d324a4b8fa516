package fusion

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

func res(id string, score float64) retrieval.Result {
	return retrieval.Result{
		Chunk: chunk.Reconstruct(id, "text "+id, source.Confluence, "path/"+id, nil),
		Score: score,
	}
}

func list(ids ...string) []retrieval.Result {
	out := make([]retrieval.Result, len(ids))
	for i, id := range ids {
		out[i] = res(id, 1/float64(i+1))
	}
	return out
}

// fakeRetriever returns fixed results after an optional delay.
type fakeRetriever struct {
	name    string
	results []retrieval.Result
	err     error
	delay   time.Duration
	// ignoreCtx simulates a backend call that does not honour cancellation.
	ignoreCtx bool

	mu    sync.Mutex
	calls int
	gotK  int
}

func (f *fakeRetriever) Name() string { return f.name }

func (f *fakeRetriever) Retrieve(ctx context.Context, _ string, k int) ([]retrieval.Result, error) {
	f.mu.Lock()
	f.calls++
	f.gotK = k
	f.mu.Unlock()

	if f.delay > 0 {
		if f.ignoreCtx {
			time.Sleep(f.delay)
		} else {
			select {
			case <-time.After(f.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]retrieval.Result, len(f.results))
	copy(out, f.results)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// mapCache is an in-memory Cache.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]retrieval.Result
	puts int
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]retrieval.Result{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]retrieval.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs, ok := c.data[key]
	return rs, ok
}

func (c *mapCache) Put(_ context.Context, key string, rs []retrieval.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.data[key] = rs
}
