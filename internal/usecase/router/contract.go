package router

import (
	"context"

	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
	"github.com/kailas-cloud/talkdb/internal/usecase/fusion"
	"github.com/kailas-cloud/talkdb/internal/usecase/sqlengine"
)

// RetrieverFactory builds the retrievers for a set of sources.
type RetrieverFactory interface {
	Build(sources []source.Source, hybrid bool) []retrieval.Retriever
}

// Fuser runs retrievers and fuses their rankings.
type Fuser interface {
	Retrieve(
		ctx context.Context, query string, retrievers []retrieval.Retriever, mode retrieval.Mode, topK int,
	) (fusion.Outcome, error)
}

// Synthesizer turns evidence into answers.
type Synthesizer interface {
	FromResults(ctx context.Context, query string, results []retrieval.Result) (answer.Answer, error)
	FromTable(ctx context.Context, query string, artifact answer.SQLArtifact) (answer.Answer, error)
	Join(ctx context.Context, query string, artifact answer.SQLArtifact, results []retrieval.Result) (answer.Answer, error)
}

// SQLEngine answers questions against one database.
type SQLEngine interface {
	Name() string
	Ask(ctx context.Context, question string) (sqlengine.Result, error)
	Artifact(r sqlengine.Result) answer.SQLArtifact
}

// SQLCatalog resolves registered databases.
type SQLCatalog interface {
	Lookup(name string) (SQLEngine, error)
	Default() (SQLEngine, bool)
}

// Graph is the knowledge-graph engine.
type Graph interface {
	Enabled() bool
	Available(ctx context.Context) error
	Query(ctx context.Context, question string) (answer.Answer, error)
}
