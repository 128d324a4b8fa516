package router

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
	"github.com/kailas-cloud/talkdb/internal/usecase/fusion"
	"github.com/kailas-cloud/talkdb/internal/usecase/sqlengine"
)

func result(id string, score float64) retrieval.Result {
	return retrieval.Result{
		Chunk: chunk.Reconstruct(id, "text "+id, source.Confluence, "/pages/"+id, nil),
		Score: score,
	}
}

type namedRetriever string

func (n namedRetriever) Name() string { return string(n) }

func (n namedRetriever) Retrieve(context.Context, string, int) ([]retrieval.Result, error) {
	return nil, nil
}

type fakeFactory struct{}

func (fakeFactory) Build(sources []source.Source, hybrid bool) []retrieval.Retriever {
	out := make([]retrieval.Retriever, 0, 2*len(sources))
	for _, s := range sources {
		out = append(out, namedRetriever("vector:"+s))
		if hybrid {
			out = append(out, namedRetriever("bm25:"+s))
		}
	}
	return out
}

// fakeFuser returns results only when retrievers are present.
type fakeFuser struct {
	results []retrieval.Result
	err     error

	mu    sync.Mutex
	calls []fuseCall
}

type fuseCall struct {
	retrievers []string
	mode       retrieval.Mode
	topK       int
}

func (f *fakeFuser) Retrieve(
	_ context.Context, _ string, rs []retrieval.Retriever, mode retrieval.Mode, topK int,
) (fusion.Outcome, error) {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name()
	}
	f.mu.Lock()
	f.calls = append(f.calls, fuseCall{retrievers: names, mode: mode, topK: topK})
	f.mu.Unlock()

	if f.err != nil {
		return fusion.Outcome{}, f.err
	}
	if len(rs) == 0 {
		return fusion.Outcome{Results: []retrieval.Result{}}, nil
	}
	return fusion.Outcome{Results: f.results}, nil
}

// fakeSynth labels answers by the path that produced them.
type fakeSynth struct{}

func (fakeSynth) FromResults(_ context.Context, q string, rs []retrieval.Result) (answer.Answer, error) {
	if len(rs) == 0 {
		return answer.Empty(), nil
	}
	return answer.Answer{Text: "docs: " + q, Citations: answer.CitationsFrom(rs), Origin: answer.OriginVector}, nil
}

func (fakeSynth) FromTable(_ context.Context, q string, a answer.SQLArtifact) (answer.Answer, error) {
	return answer.Answer{Text: "sql: " + q, Citations: []answer.Citation{}, SQL: &a, Origin: answer.OriginSQL}, nil
}

func (fakeSynth) Join(_ context.Context, q string, a answer.SQLArtifact, rs []retrieval.Result) (answer.Answer, error) {
	return answer.Answer{Text: "join: " + q, Citations: answer.CitationsFrom(rs), SQL: &a, Origin: answer.OriginSQLJoin}, nil
}

type fakeDB struct {
	name  string
	res   sqlengine.Result
	err   error
	asked int
}

func (d *fakeDB) Name() string { return d.name }

func (d *fakeDB) Ask(context.Context, string) (sqlengine.Result, error) {
	d.asked++
	return d.res, d.err
}

func (d *fakeDB) Artifact(r sqlengine.Result) answer.SQLArtifact {
	return answer.SQLArtifact{Database: d.name, SQL: r.SQL, Table: r.Table}
}

type fakeCatalog struct {
	dbs []*fakeDB
}

func (c *fakeCatalog) Lookup(name string) (SQLEngine, error) {
	for _, d := range c.dbs {
		if d.name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: database %q", domain.ErrNotFound, name)
}

func (c *fakeCatalog) Default() (SQLEngine, bool) {
	if len(c.dbs) == 0 {
		return nil, false
	}
	return c.dbs[0], true
}

type fakeGraph struct {
	enabled bool
	pingErr error
	queried int
}

func (g *fakeGraph) Enabled() bool { return g.enabled }

func (g *fakeGraph) Available(context.Context) error {
	if !g.enabled {
		return errors.New("disabled")
	}
	return g.pingErr
}

func (g *fakeGraph) Query(_ context.Context, q string) (answer.Answer, error) {
	g.queried++
	return answer.Answer{Text: "graph: " + q, Citations: []answer.Citation{}, Origin: answer.OriginKG}, nil
}
