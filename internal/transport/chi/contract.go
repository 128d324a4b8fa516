package chi

import (
	"context"
	"iter"

	"github.com/kailas-cloud/talkdb/internal/connectors"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
	"github.com/kailas-cloud/talkdb/internal/domain/sqlreg"
	"github.com/kailas-cloud/talkdb/internal/usecase/agent"
	"github.com/kailas-cloud/talkdb/internal/usecase/health"
	"github.com/kailas-cloud/talkdb/internal/usecase/indexing"
	"github.com/kailas-cloud/talkdb/internal/usecase/router"
)

// QueryRouter resolves search requests.
type QueryRouter interface {
	Route(ctx context.Context, req router.Request) (router.Route, error)
}

// ChatAgent runs chat turns.
type ChatAgent interface {
	Chat(ctx context.Context, req agent.Request) (agent.Reply, error)
	Stream(ctx context.Context, req agent.Request) iter.Seq2[agent.Event, error]
}

// Indexer loads connector output into the vector store.
type Indexer interface {
	Index(ctx context.Context, src source.Source, cfg connectors.Config) (indexing.Report, error)
	Reindex(ctx context.Context, src source.Source, cfg connectors.Config) (indexing.Report, error)
	Sources(ctx context.Context) ([]indexing.Collection, error)
}

// SQLRegistry registers databases.
type SQLRegistry interface {
	Register(ctx context.Context, reg sqlreg.Registration) (bool, error)
}

// SQLCatalog resolves registered databases.
type SQLCatalog interface {
	Lookup(name string) (router.SQLEngine, error)
}

// TableSynthesizer phrases SQL results.
type TableSynthesizer interface {
	FromTable(ctx context.Context, query string, artifact answer.SQLArtifact) (answer.Answer, error)
}

// Exporter writes tables to spreadsheet files.
type Exporter interface {
	Write(t answer.Table) (string, error)
}

// SessionMemory records search exchanges into chat sessions.
type SessionMemory interface {
	Append(id, role, content string)
}

// HealthChecker aggregates component checks.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}
