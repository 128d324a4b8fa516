package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/scope"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
	"github.com/kailas-cloud/talkdb/internal/usecase/agent"
	"github.com/kailas-cloud/talkdb/internal/usecase/health"
	"github.com/kailas-cloud/talkdb/internal/usecase/indexing"
	"github.com/kailas-cloud/talkdb/internal/usecase/sqlengine"
)

var salesTable = answer.Table{Columns: []string{"month", "total"}, Rows: [][]any{{"jan", 10}}}

func newTestServer(svc Services, opts Options) http.Handler {
	if opts.Metrics == nil {
		opts.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "# metrics")
		})
	}
	return NewServer(svc, opts, nil).Handler()
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func TestSearch_DefaultsAndResponse(t *testing.T) {
	rt := &fakeRouter{engine: &fakeEngine{ans: answer.Answer{
		Text:      "Use the portal.",
		Citations: []answer.Citation{{Source: "confluence", Path: "p1", DocID: "d1", Score: 0.03}},
		Origin:    answer.OriginVector,
	}}}
	mem := &fakeMemory{}
	h := newTestServer(Services{Router: rt, Memory: mem}, Options{MaxTopK: 10})

	rr := do(t, h, "POST", "/search", map[string]any{
		"query": "reset password", "sources": []string{"Confluence", "teams"}, "top_k": 50, "session_id": "s1",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	resp := decode[SearchResponse](t, rr)
	assert.Equal(t, "Use the portal.", resp.Answer)
	assert.Equal(t, "vector", resp.Scope)
	assert.Equal(t, "vector", resp.Origin)
	assert.Len(t, resp.Citations, 1)
	assert.Nil(t, resp.Fallback)

	require.Len(t, rt.reqs, 1)
	req := rt.reqs[0]
	assert.Equal(t, scope.Vector, req.Scope)
	assert.Equal(t, []source.Source{source.Confluence, source.Teams}, req.Sources)
	assert.True(t, req.Hybrid)
	assert.Equal(t, 10, req.TopK)

	assert.Equal(t, []string{"s1|user|reset password", "s1|assistant|Use the portal."}, mem.turns)
}

func TestSearch_ReportsFallback(t *testing.T) {
	rt := &fakeRouter{engine: &fakeEngine{ans: answer.Empty()}, fallback: true}
	h := newTestServer(Services{Router: rt}, Options{})

	rr := do(t, h, "POST", "/search", map[string]any{"query": "q", "scope": "kg", "use_hybrid": false})
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[SearchResponse](t, rr)
	require.NotNil(t, resp.Fallback)
	assert.Equal(t, Fallback{From: "kg", To: "vector", Reason: "graph_disabled"}, *resp.Fallback)
	assert.Equal(t, "vector", resp.Scope)
	assert.Equal(t, answer.NoInformation, resp.Answer)
	assert.NotNil(t, resp.Citations)
	assert.False(t, rt.reqs[0].Hybrid)
	assert.Equal(t, 5, rt.reqs[0].TopK)
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		routeErr error
		queryErr error
		status   int
		code     string
	}{
		{"missing query", map[string]any{"query": " "}, nil, nil, http.StatusBadRequest, CodeInvalidRequest},
		{"bad scope", map[string]any{"query": "q", "scope": "web"}, nil, nil, http.StatusBadRequest, CodeInvalidRequest},
		{"bad source", map[string]any{"query": "q", "sources": []string{"dropbox"}}, nil, nil, http.StatusBadRequest, CodeUnsupportedSource},
		{"sql without db", map[string]any{"query": "q"}, fmt.Errorf("%w: db_name is required", domain.ErrInvalidRequest), nil, http.StatusBadRequest, CodeInvalidRequest},
		{"unknown db", map[string]any{"query": "q"}, fmt.Errorf("%w: database \"x\"", domain.ErrNotFound), nil, http.StatusNotFound, CodeNotFound},
		{"retrieval down", map[string]any{"query": "q"}, nil, domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable, CodeRetrievalUnavailable},
		{"generation", map[string]any{"query": "q"}, nil, fmt.Errorf("synthesize: %w", domain.ErrGenerationFailure), http.StatusBadGateway, CodeGenerationFailure},
		{"internal", map[string]any{"query": "q"}, nil, errors.New("secret dsn leaked"), http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &fakeRouter{engine: &fakeEngine{err: tt.queryErr}, err: tt.routeErr}
			h := newTestServer(Services{Router: rt}, Options{})

			rr := do(t, h, "POST", "/search", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			resp := decode[ErrorResponse](t, rr)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotContains(t, resp.Message, "secret")
		})
	}
}

func TestSearch_InvalidJSON(t *testing.T) {
	h := newTestServer(Services{Router: &fakeRouter{}}, Options{})
	req := httptest.NewRequest("POST", "/search", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeBadRequest, decode[ErrorResponse](t, rr).Code)
}

func TestChat_Reply(t *testing.T) {
	table := salesTable
	ag := &fakeAgent{reply: agent.Reply{
		SessionID: "s9",
		Text:      "Sales are up.",
		Artifacts: []agent.Artifact{{Kind: agent.ArtifactExcel, Path: "/tmp/x.xlsx"}, {Kind: agent.ArtifactSQL, SQL: "SELECT 1", Table: &table}},
	}}
	h := newTestServer(Services{Router: &fakeRouter{}, Agent: ag}, Options{})

	rr := do(t, h, "POST", "/chat", map[string]any{"query": "sales?", "scope": "all", "db_name": "sales"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[ChatResponse](t, rr)
	assert.Equal(t, "s9", resp.SessionID)
	assert.Equal(t, "Sales are up.", resp.Answer)
	require.Len(t, resp.Artifacts, 2)
	assert.Equal(t, "excel", resp.Artifacts[0].Kind)
	assert.Equal(t, "/tmp/x.xlsx", resp.Artifacts[0].Path)
	assert.Equal(t, []string{"month", "total"}, resp.Artifacts[1].Table.Columns)

	require.Len(t, ag.reqs, 1)
	assert.Equal(t, "sales?", ag.reqs[0].Message)
	assert.Equal(t, scope.All, ag.reqs[0].Search.Scope)
	assert.Equal(t, "sales", ag.reqs[0].Search.DBName)
}

func TestChat_NotConfigured(t *testing.T) {
	h := newTestServer(Services{Router: &fakeRouter{}}, Options{})
	rr := do(t, h, "POST", "/chat", map[string]any{"query": "hi"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestChatStream_SSE(t *testing.T) {
	ag := &fakeAgent{tokens: []string{"Hello", " world", "\nnext line"}}
	h := newTestServer(Services{Router: &fakeRouter{}, Agent: ag}, Options{})

	req := httptest.NewRequest("GET", "/chat/stream?query=hi&sources=confluence,teams&use_hybrid=false&top_k=3", http.NoBody)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t,
		"data: Hello\n\n"+
			"data:  world\n\n"+
			"data: \ndata: next line\n\n"+
			"data: [END]\n\n",
		rr.Body.String())

	require.Len(t, ag.reqs, 1)
	got := ag.reqs[0]
	assert.Equal(t, agent.DefaultSession, got.SessionID)
	assert.Equal(t, scope.All, got.Search.Scope)
	assert.Equal(t, []source.Source{source.Confluence, source.Teams}, got.Search.Sources)
	assert.False(t, got.Search.Hybrid)
	assert.Equal(t, 3, got.Search.TopK)
}

func TestChatStream_ErrorEvent(t *testing.T) {
	ag := &fakeAgent{tokens: []string{"partial"}, err: fmt.Errorf("model: %w", domain.ErrGenerationFailure)}
	h := newTestServer(Services{Router: &fakeRouter{}, Agent: ag}, Options{})

	rr := do(t, h, "GET", "/chat/stream?query=hi&session_id=abc", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t,
		"data: partial\n\n"+
			"event: error\ndata: generation failure\n\n"+
			"data: [END]\n\n",
		rr.Body.String())
	assert.Equal(t, "abc", ag.reqs[0].SessionID)
}

func TestChatStream_BadParams(t *testing.T) {
	h := newTestServer(Services{Router: &fakeRouter{}, Agent: &fakeAgent{}}, Options{})

	for _, target := range []string{"/chat/stream", "/chat/stream?query=hi&top_k=many", "/chat/stream?query=hi&use_hybrid=maybe"} {
		rr := do(t, h, "GET", target, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
	}
	rr := do(t, h, "GET", "/chat/stream?query=hi&scope=web", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeInvalidRequest, decode[ErrorResponse](t, rr).Code)
}

func TestChatStream_StreamFlagOnPost(t *testing.T) {
	ag := &fakeAgent{tokens: []string{"ok"}}
	h := newTestServer(Services{Router: &fakeRouter{}, Agent: ag}, Options{})

	rr := do(t, h, "POST", "/chat", map[string]any{"query": "hi", "stream": true})
	assert.Equal(t, "data: ok\n\ndata: [END]\n\n", rr.Body.String())
	assert.Equal(t, scope.Vector, ag.reqs[0].Search.Scope)
}

func TestIndexSource(t *testing.T) {
	idx := &fakeIndexer{report: indexing.Report{Documents: 3, Chunks: 7}}
	h := newTestServer(Services{Router: &fakeRouter{}, Indexer: idx}, Options{})

	rr := do(t, h, "POST", "/indexing/confluence", map[string]any{"space_key": "ENG", "limit": 10})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"source":"confluence","documents":3,"chunks":7}`, rr.Body.String())
	assert.Equal(t, "ENG", idx.cfgs[0].String("space_key"))

	rr = do(t, h, "POST", "/indexing/confluence?reindex=true", map[string]any{"space_key": "ENG"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"source":"confluence","documents":3,"chunks":7,"purged":2}`, rr.Body.String())
	assert.Equal(t, 1, idx.reindexCalls)

	rr = do(t, h, "POST", "/indexing/confluence?reindex=maybe", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 1, idx.reindexCalls)

	rr = do(t, h, "POST", "/indexing/dropbox", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeUnsupportedSource, decode[ErrorResponse](t, rr).Code)

	idx.err = fmt.Errorf("%w: missing connector settings: space_key", domain.ErrInvalidRequest)
	rr = do(t, h, "POST", "/indexing/confluence", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decode[ErrorResponse](t, rr).Message, "space_key")
}

func TestRegisterSQL(t *testing.T) {
	reg := &fakeRegistry{replaced: true}
	h := newTestServer(Services{Router: &fakeRouter{}, Registry: reg}, Options{})

	rr := do(t, h, "POST", "/indexing/sql/register", map[string]any{
		"dsn": "postgres://u:p@db/sales", "include_tables": []string{" orders ", ""},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, RegisterSQLResponse{Name: "default", Replaced: true}, decode[RegisterSQLResponse](t, rr))
	require.Len(t, reg.regs, 1)
	assert.Equal(t, []string{"orders"}, reg.regs[0].IncludeTables)

	rr = do(t, h, "POST", "/indexing/sql/register", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAskSQL(t *testing.T) {
	catalog := fakeCatalog{
		"default": {name: "default", res: sqlengine.Result{SQL: "SELECT month, total FROM sales", Table: salesTable}},
		"unsafe":  {name: "unsafe", err: fmt.Errorf("%w: DROP", domain.ErrUnsafeQuery)},
	}
	h := newTestServer(Services{Router: &fakeRouter{}, Catalog: catalog, Synth: fakeSynth{}}, Options{})

	rr := do(t, h, "POST", "/sql/ask", map[string]any{"question": "sales by month", "db_name": "default"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[SQLAskResponse](t, rr)
	assert.Equal(t, "rows: month,total", resp.Answer)
	assert.Equal(t, "SELECT month, total FROM sales", resp.SQL)
	assert.Equal(t, []string{"month", "total"}, resp.Columns)
	assert.Len(t, resp.Rows, 1)

	rr = do(t, h, "POST", "/sql/ask", map[string]any{"question": "x", "db_name": "unsafe"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeUnsafeQuery, decode[ErrorResponse](t, rr).Code)

	rr = do(t, h, "POST", "/sql/ask", map[string]any{"question": "x", "db_name": "nope"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAskSQL_RequestValidation(t *testing.T) {
	catalog := fakeCatalog{
		"default": {name: "default", res: sqlengine.Result{SQL: "SELECT month, total FROM sales", Table: salesTable}},
	}
	h := newTestServer(Services{Router: &fakeRouter{}, Catalog: catalog, Synth: fakeSynth{}}, Options{})

	rr := do(t, h, "POST", "/sql/ask", map[string]any{"query": "sales by month", "db_name": "default"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "SELECT month, total FROM sales", decode[SQLAskResponse](t, rr).SQL)

	rr = do(t, h, "POST", "/sql/ask", map[string]any{"question": "sales by month"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "db_name is required", decode[ErrorResponse](t, rr).Message)

	rr = do(t, h, "POST", "/sql/export", map[string]any{"query": "all sales", "db_name": "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, "POST", "/sql/ask", map[string]any{"db_name": "default"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "question is required", decode[ErrorResponse](t, rr).Message)
}

func TestExportSQL(t *testing.T) {
	catalog := fakeCatalog{
		"default": {name: "default", res: sqlengine.Result{SQL: "SELECT 1", Table: salesTable}},
		"empty":   {name: "empty", res: sqlengine.Result{SQL: "SELECT"}},
	}
	h := newTestServer(Services{Router: &fakeRouter{}, Catalog: catalog, Exporter: fakeExporter{}}, Options{})

	rr := do(t, h, "POST", "/sql/export", map[string]any{"question": "all sales", "db_name": "default"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, SQLExportResponse{FilePath: "/tmp/exports/export_x.xlsx", SQL: "SELECT 1", Rows: 1}, decode[SQLExportResponse](t, rr))

	rr = do(t, h, "POST", "/sql/export", map[string]any{"question": "nothing", "db_name": "empty"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, CodeNoTabularResult, decode[ErrorResponse](t, rr).Code)
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		status health.Status
		want   int
	}{
		{health.Healthy, http.StatusOK},
		{health.Degraded, http.StatusOK},
		{health.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		report := health.Report{Status: tt.status, Checks: map[string]health.CheckResult{"vector_store": health.CheckOK}}
		h := newTestServer(Services{Router: &fakeRouter{}, Health: fakeHealth{report: report}}, Options{APIKeys: []string{"k"}})

		rr := do(t, h, "GET", "/health", nil)
		assert.Equal(t, tt.want, rr.Code, tt.status)
		resp := decode[HealthResponse](t, rr)
		assert.Equal(t, string(tt.status), resp.Status)
		assert.Equal(t, "ok", resp.Checks["vector_store"])
	}
}

func TestMetricsAndAuth(t *testing.T) {
	h := newTestServer(Services{Router: &fakeRouter{}}, Options{APIKeys: []string{"k"}})

	rr := do(t, h, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "# metrics", rr.Body.String())

	rr = do(t, h, "GET", "/admin/sources", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestListSources(t *testing.T) {
	idx := &fakeIndexer{cols: []indexing.Collection{{Source: source.Teams, Collection: "ttdb_teams", Chunks: 4}}}
	h := newTestServer(Services{Router: &fakeRouter{}, Indexer: idx}, Options{})

	rr := do(t, h, "GET", "/admin/sources", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"collections":[{"source":"teams","collection":"ttdb_teams","chunks":4}]}`, rr.Body.String())
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(Services{Router: &fakeRouter{}}, Options{})
	rr := do(t, h, "GET", "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, CodeNotFound, decode[ErrorResponse](t, rr).Code)
}

func TestRecoverer(t *testing.T) {
	h := newTestServer(Services{Router: &fakeRouter{}}, Options{})
	// nil engine panics inside the handler
	rr := do(t, h, "POST", "/search", map[string]any{"query": "q"})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, CodeInternalError, decode[ErrorResponse](t, rr).Code)
}
