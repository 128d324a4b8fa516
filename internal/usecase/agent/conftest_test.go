package agent

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/usecase/memory"
	"github.com/kailas-cloud/talkdb/internal/usecase/router"
	"github.com/kailas-cloud/talkdb/internal/usecase/sqlengine"
)

// scriptedModel replays completions in order and records what it was sent.
type scriptedModel struct {
	mu      sync.Mutex
	replies []domain.Completion
	err     error
	calls   [][]domain.Message
	tools   [][]domain.Tool
}

func (m *scriptedModel) next(msgs []domain.Message, tools []domain.Tool) (domain.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]domain.Message(nil), msgs...))
	m.tools = append(m.tools, tools)
	if m.err != nil {
		return domain.Completion{}, m.err
	}
	if len(m.replies) == 0 {
		return domain.Completion{Content: "done"}, nil
	}
	c := m.replies[0]
	m.replies = m.replies[1:]
	return c, nil
}

func (m *scriptedModel) Complete(_ context.Context, msgs []domain.Message, tools []domain.Tool) (domain.Completion, error) {
	return m.next(msgs, tools)
}

// CompleteStream splits content into words.
func (m *scriptedModel) CompleteStream(ctx context.Context, msgs []domain.Message, tools []domain.Tool) iter.Seq2[domain.CompletionDelta, error] {
	return func(yield func(domain.CompletionDelta, error) bool) {
		c, err := m.next(msgs, tools)
		if err != nil {
			yield(domain.CompletionDelta{}, err)
			return
		}
		for _, w := range strings.SplitAfter(c.Content, " ") {
			if w == "" {
				continue
			}
			if ctx.Err() != nil {
				yield(domain.CompletionDelta{}, ctx.Err())
				return
			}
			if !yield(domain.CompletionDelta{Content: w}, nil) {
				return
			}
		}
		if len(c.ToolCalls) > 0 {
			yield(domain.CompletionDelta{ToolCalls: c.ToolCalls}, nil)
		}
	}
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type fakeEngine struct {
	ans     answer.Answer
	err     error
	queries []string
}

func (e *fakeEngine) Query(_ context.Context, q string) (answer.Answer, error) {
	e.queries = append(e.queries, q)
	return e.ans, e.err
}

type fakeRouter struct {
	engine *fakeEngine
	err    error
	reqs   []router.Request
}

func (r *fakeRouter) Route(_ context.Context, req router.Request) (router.Route, error) {
	r.reqs = append(r.reqs, req)
	if r.err != nil {
		return router.Route{}, r.err
	}
	return router.Route{Engine: r.engine, Requested: req.Scope, Effective: req.Scope}, nil
}

type fakeDB struct {
	name  string
	res   sqlengine.Result
	err   error
	asked []string
}

func (d *fakeDB) Name() string { return d.name }

func (d *fakeDB) Ask(_ context.Context, q string) (sqlengine.Result, error) {
	d.asked = append(d.asked, q)
	return d.res, d.err
}

func (d *fakeDB) Artifact(r sqlengine.Result) answer.SQLArtifact {
	return answer.SQLArtifact{Database: d.name, SQL: r.SQL, Table: r.Table}
}

type fakeCatalog struct {
	dbs   map[string]*fakeDB
	first *fakeDB
}

func (c *fakeCatalog) Lookup(name string) (router.SQLEngine, error) {
	db, ok := c.dbs[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return db, nil
}

func (c *fakeCatalog) Default() (router.SQLEngine, bool) {
	if c.first == nil {
		return nil, false
	}
	return c.first, true
}

type fakeExporter struct {
	tables []answer.Table
}

func (e *fakeExporter) Write(t answer.Table) (string, error) {
	if len(t.Columns) == 0 {
		return "", domain.ErrNoTabularResult
	}
	e.tables = append(e.tables, t)
	return "/tmp/exports/export_1.xlsx", nil
}

type fakePlotter struct {
	kinds []string
}

func (p *fakePlotter) Render(kind, _ string, _ answer.Table) (string, error) {
	if kind == "pie" {
		return "", errors.New("unsupported chart")
	}
	p.kinds = append(p.kinds, kind)
	return "/tmp/exports/plot_1.html", nil
}

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func newMemory() *memory.Store {
	return memory.New(memory.Config{TokenLimit: 1000}, wordCounter{}, nil)
}

var salesTable = answer.Table{
	Columns: []string{"month", "total"},
	Rows:    [][]any{{"jan", 10}, {"feb", 12}},
}
