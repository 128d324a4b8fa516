package agent

import (
	"context"

	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/usecase/memory"
	"github.com/kailas-cloud/talkdb/internal/usecase/router"
)

// Router resolves the search_documents tool to an engine.
type Router interface {
	Route(ctx context.Context, req router.Request) (router.Route, error)
}

// SQLCatalog resolves databases for the SQL tools.
type SQLCatalog interface {
	Lookup(name string) (router.SQLEngine, error)
	Default() (router.SQLEngine, bool)
}

// Memory keeps chat history per session.
type Memory interface {
	Get(id string) *memory.History
}

// Exporter writes tables to spreadsheet files.
type Exporter interface {
	Write(t answer.Table) (string, error)
}

// Plotter renders tables as charts.
type Plotter interface {
	Render(kind, title string, t answer.Table) (string, error)
}
