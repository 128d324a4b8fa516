package kg

import (
	"context"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
)

// Graph runs read-only queries against the graph backend.
type Graph interface {
	Schema(ctx context.Context) (string, error)
	Query(ctx context.Context, cypher string) (answer.Table, error)
	Ping(ctx context.Context) error
}

// Generator translates questions into Cypher.
type Generator interface {
	Generate(ctx context.Context, p domain.Prompt) (string, error)
}

// Synthesizer answers from ranked evidence.
type Synthesizer interface {
	FromResults(ctx context.Context, query string, results []retrieval.Result) (answer.Answer, error)
}
