// Package kg answers questions from the knowledge graph.
package kg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
	"github.com/kailas-cloud/talkdb/internal/logger"
)

// Source tags chunks synthesized from graph rows.
const Source source.Source = "kg"

// DefaultPingTimeout bounds the availability probe.
const DefaultPingTimeout = 2 * time.Second

const text2CypherPrompt = `You translate questions into a single read-only Cypher query.
Use only the node labels, properties and relationships listed below.
Never create, update or delete data. Return only the Cypher, no explanation.

Schema:
%s`

// Engine answers questions by querying the graph and synthesizing from its rows.
// A nil Engine or one without a graph is disabled.
type Engine struct {
	graph       Graph
	gen         Generator
	synth       Synthesizer
	pingTimeout time.Duration
	logger      *zap.Logger
}

// New creates an Engine. A nil graph yields a disabled engine.
func New(graph Graph, gen Generator, synth Synthesizer, pingTimeout time.Duration, log *zap.Logger) *Engine {
	if pingTimeout <= 0 {
		pingTimeout = DefaultPingTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{graph: graph, gen: gen, synth: synth, pingTimeout: pingTimeout, logger: log}
}

// Enabled reports whether a graph backend is configured.
func (e *Engine) Enabled() bool {
	return e != nil && e.graph != nil
}

// Available returns ErrGraphUnavailable when the graph is disabled or unreachable.
func (e *Engine) Available(ctx context.Context) error {
	if !e.Enabled() {
		return fmt.Errorf("%w: disabled", domain.ErrGraphUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, e.pingTimeout)
	defer cancel()
	if err := e.graph.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrGraphUnavailable, err)
	}
	return nil
}

// Query answers question from the graph. Rows become chunks ranked in
// returned order; no rows yields the no-information answer.
func (e *Engine) Query(ctx context.Context, question string) (answer.Answer, error) {
	if !e.Enabled() {
		return answer.Answer{}, fmt.Errorf("%w: disabled", domain.ErrGraphUnavailable)
	}
	if strings.TrimSpace(question) == "" {
		return answer.Answer{}, fmt.Errorf("%w: question is required", domain.ErrInvalidRequest)
	}

	schema, err := e.graph.Schema(ctx)
	if err != nil {
		return answer.Answer{}, fmt.Errorf("%w: read schema: %w", domain.ErrGraphUnavailable, err)
	}

	reply, err := e.gen.Generate(ctx, domain.UserPrompt(fmt.Sprintf(text2CypherPrompt, schema), question))
	if err != nil {
		return answer.Answer{}, fmt.Errorf("%w: text to cypher: %w", domain.ErrGenerationFailure, err)
	}

	cypher := extractCypher(reply)
	if err := checkReadOnly(cypher); err != nil {
		logger.FromContext(ctx, e.logger).Warn("Rejected generated Cypher",
			zap.String("cypher", cypher), zap.Error(err))
		return answer.Answer{}, err
	}

	table, err := e.graph.Query(ctx, cypher)
	if err != nil {
		return answer.Answer{}, fmt.Errorf("%w: %w", domain.ErrGraphUnavailable, err)
	}
	if table.Empty() {
		return answer.Empty(), nil
	}

	a, err := e.synth.FromResults(ctx, question, rowsToResults(table))
	if err != nil {
		return answer.Answer{}, err
	}
	a.Origin = answer.OriginKG
	return a, nil
}

// rowsToResults renders each row as "column: value" lines. Scores decrease
// with row position so synthesis keeps the graph's order.
func rowsToResults(t answer.Table) []retrieval.Result {
	out := make([]retrieval.Result, 0, len(t.Rows))
	for i, row := range t.Rows {
		var b strings.Builder
		for j, v := range row {
			if j > 0 {
				b.WriteByte('\n')
			}
			name := "col" + strconv.Itoa(j)
			if j < len(t.Columns) {
				name = t.Columns[j]
			}
			b.WriteString(name + ": " + render(v))
		}
		text := b.String()
		path := "kg://row/" + strconv.Itoa(i+1)
		out = append(out, retrieval.Result{
			Chunk:     chunk.Reconstruct(chunk.ID(Source, path, text), text, Source, path, nil),
			Score:     1 / float64(i+1),
			Retriever: "kg",
		})
	}
	return out
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	default:
		return fmt.Sprint(x)
	}
}
