package kg

import (
	"context"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
)

type fakeGraph struct {
	schema   string
	table    answer.Table
	queryErr error
	pingErr  error
	queries  []string
}

func (f *fakeGraph) Schema(context.Context) (string, error) { return f.schema, nil }

func (f *fakeGraph) Query(_ context.Context, cypher string) (answer.Table, error) {
	f.queries = append(f.queries, cypher)
	return f.table, f.queryErr
}

func (f *fakeGraph) Ping(context.Context) error { return f.pingErr }

type fakeGenerator struct {
	reply string
	err   error
}

func (f *fakeGenerator) Generate(context.Context, domain.Prompt) (string, error) {
	return f.reply, f.err
}

type fakeSynth struct {
	got []retrieval.Result
}

func (f *fakeSynth) FromResults(_ context.Context, _ string, results []retrieval.Result) (answer.Answer, error) {
	f.got = results
	return answer.Answer{
		Text:      "graph answer",
		Citations: answer.CitationsFrom(results),
		Origin:    answer.OriginVector,
	}, nil
}
