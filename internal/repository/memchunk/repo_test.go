package memchunk

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

func seed(t *testing.T, r *Repo) (chunk.Chunk, chunk.Chunk, chunk.Chunk) {
	t.Helper()
	a, err := chunk.New(source.Confluence, "ops/restart", "To restart the payment service run the deploy job.", nil)
	require.NoError(t, err)
	b, err := chunk.New(source.Confluence, "hr/vacation", "Vacation requests go through the HR portal.", nil)
	require.NoError(t, err)
	c, err := chunk.New(source.Confluence, "ops/payment", "Payment service dashboards live in Grafana.", nil)
	require.NoError(t, err)

	err = r.Upsert(context.Background(), source.Confluence,
		[]chunk.Chunk{a, b, c},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.7, 0.7, 0}})
	require.NoError(t, err)
	return a, b, c
}

func TestSearchVector_Cosine(t *testing.T) {
	r := New("ttdb_", 3)
	a, _, c := seed(t, r)

	res, err := r.SearchVector(context.Background(), source.Confluence, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID(), c.ID()}, retrieval.IDs(res))
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
}

func TestSearchText_BM25(t *testing.T) {
	r := New("ttdb_", 3)
	a, _, c := seed(t, r)

	res, err := r.SearchText(context.Background(), source.Confluence, "how to restart payment service", 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, a.ID(), res[0].Chunk.ID(), "restart matches only the first chunk")
	assert.Equal(t, c.ID(), res[1].Chunk.ID())
	assert.Greater(t, res[0].Score, res[1].Score)
}

func TestSearch_UnknownSourceIsEmpty(t *testing.T) {
	r := New("ttdb_", 3)

	res, err := r.SearchVector(context.Background(), source.Teams, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = r.SearchText(context.Background(), source.Teams, "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, res)

	n, err := r.Count(context.Background(), source.Teams)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsert_Idempotent(t *testing.T) {
	r := New("ttdb_", 3)
	seed(t, r)
	seed(t, r)

	n, err := r.Count(context.Background(), source.Confluence)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUpsert_Validation(t *testing.T) {
	r := New("ttdb_", 3)
	a, err := chunk.New(source.Teams, "p", "text", nil)
	require.NoError(t, err)

	assert.Error(t, r.Upsert(context.Background(), source.Teams, []chunk.Chunk{a}, nil))
	assert.Error(t, r.Upsert(context.Background(), source.Teams, []chunk.Chunk{a}, [][]float32{{1}}))
}

func TestTopK_TieBreakByID(t *testing.T) {
	x := retrieval.Result{Chunk: chunk.Reconstruct("x", "", source.Teams, "", nil), Score: 0.5}
	y := retrieval.Result{Chunk: chunk.Reconstruct("y", "", source.Teams, "", nil), Score: 0.5}

	got := topK([]retrieval.Result{y, x}, 10)
	assert.Equal(t, []string{"x", "y"}, retrieval.IDs(got))
}

func TestConcurrentAccess(t *testing.T) {
	r := New("ttdb_", 3)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				seed(t, r)
				return
			}
			_, _ = r.SearchText(context.Background(), source.Confluence, "payment", 3)
		}()
	}
	wg.Wait()

	n, err := r.Count(context.Background(), source.Confluence)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPurge(t *testing.T) {
	r := New("ttdb_", 3)
	seed(t, r)
	ctx := context.Background()

	n, err := r.Purge(ctx, source.Confluence)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := r.Count(ctx, source.Confluence)
	require.NoError(t, err)
	assert.Zero(t, count)

	n, err = r.Purge(ctx, source.Teams)
	require.NoError(t, err)
	assert.Zero(t, n)
}
