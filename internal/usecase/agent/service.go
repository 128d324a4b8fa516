// Package agent runs the tool-using chat loop.
package agent

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/logger"
	"github.com/kailas-cloud/talkdb/internal/usecase/router"
)

// DefaultMaxIterations bounds model calls per chat turn.
const DefaultMaxIterations = 6

// DefaultSession is used when a request names no session.
const DefaultSession = "default"

const systemPrompt = `You are an internal knowledge assistant.
Use search_documents for questions about documentation, policies or how-tos.
Use ask_sql for questions about numbers or records in registered databases.
Use export_sql_excel when the user wants a spreadsheet and plot when they want a chart.
Answer from tool results only and name the sources you used. If nothing relevant is found, say so.`

// ArtifactKind tells what a tool produced.
type ArtifactKind string

// Artifact kinds.
const (
	ArtifactSQL   ArtifactKind = "sql"
	ArtifactExcel ArtifactKind = "excel"
	ArtifactPlot  ArtifactKind = "plot"
)

// Artifact is a structured tool output surfaced next to the reply.
type Artifact struct {
	Kind     ArtifactKind
	Database string
	SQL      string
	Path     string
	Table    *answer.Table
}

// Request is one user chat turn. Search carries the retrieval settings the
// search tool routes with.
type Request struct {
	SessionID string
	Message   string
	Search    router.Request
}

// Reply is the final answer of a chat turn.
type Reply struct {
	SessionID string
	Text      string
	Citations []answer.Citation
	Artifacts []Artifact
}

// EventKind classifies stream events.
type EventKind string

// Stream event kinds.
const (
	EventToken EventKind = "token"
	EventTool  EventKind = "tool"
	EventDone  EventKind = "done"
)

// Event is one element of a streamed chat turn. Token events arrive in
// generation order; the last event is EventDone carrying the Reply.
type Event struct {
	Kind  EventKind
	Token string
	Tool  string
	Reply *Reply
}

// Agent answers chat turns with tools and session memory.
type Agent struct {
	model         domain.ToolCaller
	router        Router
	catalog       SQLCatalog
	memory        Memory
	exporter      Exporter
	plotter       Plotter
	maxIterations int
	logger        *zap.Logger
}

// Option configures optional tools.
type Option func(*Agent)

// WithSQL enables ask_sql.
func WithSQL(c SQLCatalog) Option {
	return func(a *Agent) { a.catalog = c }
}

// WithExporter enables export_sql_excel. Needs WithSQL.
func WithExporter(e Exporter) Option {
	return func(a *Agent) { a.exporter = e }
}

// WithPlotter enables plot. Needs WithSQL.
func WithPlotter(p Plotter) Option {
	return func(a *Agent) { a.plotter = p }
}

// New creates an Agent.
func New(model domain.ToolCaller, r Router, mem Memory, maxIterations int, log *zap.Logger, opts ...Option) *Agent {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	if log == nil {
		log = zap.NewNop()
	}
	a := &Agent{model: model, router: r, memory: mem, maxIterations: maxIterations, logger: log}
	for _, o := range opts {
		o(a)
	}
	return a
}

// turn is the state of one chat turn.
type turn struct {
	agent     *Agent
	req       Request
	log       *zap.Logger
	messages  []domain.Message
	citations []answer.Citation
	artifacts []Artifact
}

func (a *Agent) begin(ctx context.Context, req Request) (*turn, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidRequest)
	}
	if req.SessionID == "" {
		req.SessionID = DefaultSession
	}

	msgs := []domain.Message{{Role: domain.RoleSystem, Content: systemPrompt}}
	msgs = append(msgs, a.memory.Get(req.SessionID).Turns()...)
	msgs = append(msgs, domain.Message{Role: domain.RoleUser, Content: req.Message})

	return &turn{
		agent:    a,
		req:      req,
		log:      logger.FromContext(ctx, a.logger).With(zap.String("session_id", req.SessionID)),
		messages: msgs,
	}, nil
}

// Chat runs one turn to completion.
func (a *Agent) Chat(ctx context.Context, req Request) (Reply, error) {
	t, err := a.begin(ctx, req)
	if err != nil {
		return Reply{}, err
	}

	for i := 0; ; i++ {
		tools := a.tools()
		if i >= a.maxIterations {
			tools = nil
		}
		c, err := a.model.Complete(ctx, t.messages, tools)
		if err != nil {
			return Reply{}, fmt.Errorf("agent step %d: %w", i+1, err)
		}
		if len(c.ToolCalls) == 0 || tools == nil {
			return t.finish(c.Content), nil
		}
		if err := t.runTools(ctx, c, nil); err != nil {
			return Reply{}, err
		}
	}
}

// Stream runs one turn and yields answer tokens as they are generated.
// Breaking out of the loop or cancelling ctx stops the model call. Memory
// is only updated when the turn completes.
func (a *Agent) Stream(ctx context.Context, req Request) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		t, err := a.begin(ctx, req)
		if err != nil {
			yield(Event{}, err)
			return
		}

		for i := 0; ; i++ {
			tools := a.tools()
			if i >= a.maxIterations {
				tools = nil
			}

			var content strings.Builder
			var calls []domain.ToolCall
			for d, err := range a.model.CompleteStream(ctx, t.messages, tools) {
				if err != nil {
					yield(Event{}, fmt.Errorf("agent step %d: %w", i+1, err))
					return
				}
				if d.Content != "" {
					content.WriteString(d.Content)
					if !yield(Event{Kind: EventToken, Token: d.Content}, nil) {
						return
					}
				}
				if len(d.ToolCalls) > 0 {
					calls = d.ToolCalls
				}
			}
			if err := ctx.Err(); err != nil {
				yield(Event{}, err)
				return
			}

			if len(calls) == 0 || tools == nil {
				reply := t.finish(content.String())
				yield(Event{Kind: EventDone, Reply: &reply}, nil)
				return
			}

			stopped := false
			notify := func(name string) bool {
				if !yield(Event{Kind: EventTool, Tool: name}, nil) {
					stopped = true
				}
				return !stopped
			}
			c := domain.Completion{Content: content.String(), ToolCalls: calls}
			if err := t.runTools(ctx, c, notify); err != nil {
				if !stopped {
					yield(Event{}, err)
				}
				return
			}
		}
	}
}

// runTools records the assistant tool request and appends every tool result.
// notify, when set, is called before each tool and stops the turn on false.
func (t *turn) runTools(ctx context.Context, c domain.Completion, notify func(string) bool) error {
	calls := make([]domain.ToolCall, len(c.ToolCalls))
	for i, call := range c.ToolCalls {
		if call.ID == "" {
			call.ID = "call_" + uuid.NewString()
		}
		calls[i] = call
	}
	t.messages = append(t.messages, domain.Message{Role: domain.RoleAssistant, Content: c.Content, ToolCalls: calls})

	for _, call := range calls {
		if notify != nil && !notify(call.Name) {
			return context.Canceled
		}
		t.log.Debug("Tool call", zap.String("tool", call.Name), zap.String("arguments", call.Arguments))
		out, err := t.invoke(ctx, call)
		if err != nil {
			return err
		}
		t.messages = append(t.messages, domain.Message{
			Role:       domain.RoleTool,
			Content:    out,
			Name:       call.Name,
			ToolCallID: call.ID,
		})
	}
	return nil
}

func (t *turn) finish(text string) Reply {
	text = strings.TrimSpace(text)
	h := t.agent.memory.Get(t.req.SessionID)
	h.Append(domain.RoleUser, t.req.Message)
	h.Append(domain.RoleAssistant, text)

	citations := t.citations
	if citations == nil {
		citations = []answer.Citation{}
	}
	return Reply{
		SessionID: t.req.SessionID,
		Text:      text,
		Citations: citations,
		Artifacts: t.artifacts,
	}
}
