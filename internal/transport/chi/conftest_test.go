package chi

import (
	"context"
	"iter"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/connectors"
	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/scope"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
	"github.com/kailas-cloud/talkdb/internal/domain/sqlreg"
	"github.com/kailas-cloud/talkdb/internal/usecase/agent"
	"github.com/kailas-cloud/talkdb/internal/usecase/health"
	"github.com/kailas-cloud/talkdb/internal/usecase/indexing"
	"github.com/kailas-cloud/talkdb/internal/usecase/router"
	"github.com/kailas-cloud/talkdb/internal/usecase/sqlengine"
)

type fakeEngine struct {
	ans answer.Answer
	err error
}

func (e *fakeEngine) Query(_ context.Context, _ string) (answer.Answer, error) { return e.ans, e.err }

type fakeRouter struct {
	engine   *fakeEngine
	err      error
	fallback bool
	reqs     []router.Request
}

func (r *fakeRouter) Route(_ context.Context, req router.Request) (router.Route, error) {
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return router.Route{}, r.err
	}
	route := router.Route{Engine: r.engine, Requested: req.Scope, Effective: req.Scope}
	if r.fallback {
		route.Effective = scope.Vector
		route.Fallback = true
		route.Reason = router.ReasonGraphDisabled
	}
	return route, nil
}

type fakeAgent struct {
	reply  agent.Reply
	err    error
	tokens []string
	reqs   []agent.Request
}

func (a *fakeAgent) Chat(_ context.Context, req agent.Request) (agent.Reply, error) {
	a.reqs = append(a.reqs, req)
	return a.reply, a.err
}

func (a *fakeAgent) Stream(_ context.Context, req agent.Request) iter.Seq2[agent.Event, error] {
	a.reqs = append(a.reqs, req)
	return func(yield func(agent.Event, error) bool) {
		for _, tok := range a.tokens {
			if !yield(agent.Event{Kind: agent.EventToken, Token: tok}, nil) {
				return
			}
		}
		if a.err != nil {
			yield(agent.Event{}, a.err)
			return
		}
		yield(agent.Event{Kind: agent.EventDone, Reply: &a.reply}, nil)
	}
}

type fakeIndexer struct {
	report indexing.Report
	err    error
	cfgs     []connectors.Config
	cols     []indexing.Collection
	reindexCalls int
}

func (i *fakeIndexer) Index(_ context.Context, src source.Source, cfg connectors.Config) (indexing.Report, error) {
	i.cfgs = append(i.cfgs, cfg)
	if i.err != nil {
		return indexing.Report{}, i.err
	}
	r := i.report
	r.Source = src
	return r, nil
}

func (i *fakeIndexer) Reindex(ctx context.Context, src source.Source, cfg connectors.Config) (indexing.Report, error) {
	i.reindexCalls++
	r, err := i.Index(ctx, src, cfg)
	r.Purged = 2
	return r, err
}

func (i *fakeIndexer) Sources(_ context.Context) ([]indexing.Collection, error) { return i.cols, nil }

type fakeRegistry struct {
	regs     []sqlreg.Registration
	replaced bool
}

func (r *fakeRegistry) Register(_ context.Context, reg sqlreg.Registration) (bool, error) {
	if err := reg.Validate(); err != nil {
		return false, err
	}
	r.regs = append(r.regs, reg)
	return r.replaced, nil
}

type fakeDB struct {
	name string
	res  sqlengine.Result
	err  error
}

func (d *fakeDB) Name() string { return d.name }

func (d *fakeDB) Ask(_ context.Context, _ string) (sqlengine.Result, error) { return d.res, d.err }

func (d *fakeDB) Artifact(r sqlengine.Result) answer.SQLArtifact {
	return answer.SQLArtifact{Database: d.name, SQL: r.SQL, Table: r.Table}
}

type fakeCatalog map[string]*fakeDB

func (c fakeCatalog) Lookup(name string) (router.SQLEngine, error) {
	db, ok := c[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return db, nil
}

type fakeSynth struct{}

func (fakeSynth) FromTable(_ context.Context, _ string, a answer.SQLArtifact) (answer.Answer, error) {
	return answer.Answer{Text: "rows: " + strings.Join(a.Table.Columns, ","), SQL: &a, Origin: answer.OriginSQL}, nil
}

type fakeExporter struct{}

func (fakeExporter) Write(_ answer.Table) (string, error) { return "/tmp/exports/export_x.xlsx", nil }

type fakeMemory struct {
	turns []string
}

func (m *fakeMemory) Append(id, role, content string) {
	m.turns = append(m.turns, id+"|"+role+"|"+content)
}

type fakeHealth struct {
	report health.Report
}

func (h fakeHealth) Check(_ context.Context) health.Report { return h.report }
