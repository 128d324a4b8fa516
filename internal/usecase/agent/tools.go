package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/usecase/router"
	"github.com/kailas-cloud/talkdb/internal/usecase/synth"
)

// Tool names.
const (
	ToolSearch = "search_documents"
	ToolAskSQL = "ask_sql"
	ToolExport = "export_sql_excel"
	ToolPlot   = "plot"
)

// toolTableRows caps the rows echoed back to the model.
const toolTableRows = 20

var sqlParams = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"question": map[string]any{"type": "string", "description": "Question to answer with SQL"},
		"db_name":  map[string]any{"type": "string", "description": "Registered database name"},
	},
	"required": []string{"question"},
}

func (a *Agent) tools() []domain.Tool {
	tools := []domain.Tool{{
		Name:        ToolSearch,
		Description: "Search the indexed documents and return an answer with sources.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string", "description": "Search query"},
			},
			"required": []string{"query"},
		},
	}}
	if a.catalog == nil {
		return tools
	}
	tools = append(tools, domain.Tool{
		Name:        ToolAskSQL,
		Description: "Answer a question from a registered SQL database. Returns the SQL and the rows.",
		Parameters:  sqlParams,
	})
	if a.exporter != nil {
		tools = append(tools, domain.Tool{
			Name:        ToolExport,
			Description: "Run a SQL question and save the result as an Excel file.",
			Parameters:  sqlParams,
		})
	}
	if a.plotter != nil {
		tools = append(tools, domain.Tool{
			Name:        ToolPlot,
			Description: "Run a SQL question and draw the result. The first column is the x axis.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"question": map[string]any{"type": "string"},
					"db_name":  map[string]any{"type": "string"},
					"kind":     map[string]any{"type": "string", "enum": []string{"line", "bar", "scatter"}},
					"title":    map[string]any{"type": "string"},
				},
				"required": []string{"question"},
			},
		})
	}
	return tools
}

type searchArgs struct {
	Query string `json:"query"`
}

type sqlArgs struct {
	Question string `json:"question"`
	DBName   string `json:"db_name"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
}

// invoke runs one tool call. Tool failures become the tool's output so the
// model can react; only context errors abort the turn.
func (t *turn) invoke(ctx context.Context, call domain.ToolCall) (string, error) {
	out, err := t.dispatch(ctx, call)
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	t.log.Warn("Tool call failed", zap.String("tool", call.Name), zap.Error(err))
	return "error: " + err.Error(), nil
}

func (t *turn) dispatch(ctx context.Context, call domain.ToolCall) (string, error) {
	switch call.Name {
	case ToolSearch:
		var args searchArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return "", err
		}
		return t.search(ctx, args)
	case ToolAskSQL, ToolExport, ToolPlot:
		var args sqlArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return "", err
		}
		return t.sql(ctx, call.Name, args)
	default:
		return "", fmt.Errorf("%w: unknown tool %q", domain.ErrInvalidRequest, call.Name)
	}
}

func decodeArgs(raw string, v any) error {
	if strings.TrimSpace(raw) == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: tool arguments: %w", domain.ErrInvalidRequest, err)
	}
	return nil
}

func (t *turn) search(ctx context.Context, args searchArgs) (string, error) {
	q := strings.TrimSpace(args.Query)
	if q == "" {
		q = t.req.Message
	}
	route, err := t.agent.router.Route(ctx, t.req.Search)
	if err != nil {
		return "", err
	}
	ans, err := route.Engine.Query(ctx, q)
	if err != nil {
		return "", err
	}

	t.citations = append(t.citations, ans.Citations...)
	if ans.SQL != nil {
		t.addSQL(*ans.SQL)
	}

	var b strings.Builder
	b.WriteString(ans.Text)
	if len(ans.Citations) > 0 {
		b.WriteString("\n\nSources:")
		for _, c := range ans.Citations {
			fmt.Fprintf(&b, "\n- %s (%s)", c.Path, c.Source)
		}
	}
	return b.String(), nil
}

func (t *turn) sql(ctx context.Context, tool string, args sqlArgs) (string, error) {
	if strings.TrimSpace(args.Question) == "" {
		return "", fmt.Errorf("%w: question is required", domain.ErrInvalidRequest)
	}
	db, err := t.database(args.DBName)
	if err != nil {
		return "", err
	}
	res, err := db.Ask(ctx, args.Question)
	if err != nil {
		return "", err
	}
	artifact := db.Artifact(res)
	t.addSQL(artifact)

	switch tool {
	case ToolExport:
		path, err := t.agent.exporter.Write(artifact.Table)
		if err != nil {
			return "", err
		}
		t.artifacts = append(t.artifacts, Artifact{Kind: ArtifactExcel, Database: artifact.Database, SQL: artifact.SQL, Path: path})
		return fmt.Sprintf("Saved %d rows to %s", len(artifact.Table.Rows), path), nil

	case ToolPlot:
		if artifact.Table.Empty() {
			return "", fmt.Errorf("%w: query returned no rows", domain.ErrNoTabularResult)
		}
		path, err := t.agent.plotter.Render(args.Kind, args.Title, artifact.Table)
		if err != nil {
			return "", err
		}
		t.artifacts = append(t.artifacts, Artifact{Kind: ArtifactPlot, Database: artifact.Database, SQL: artifact.SQL, Path: path})
		return "Chart saved to " + path, nil
	}

	return fmt.Sprintf("SQL: %s\n\n%s", artifact.SQL, synth.FormatTable(artifact.Table, toolTableRows)), nil
}

func (t *turn) database(name string) (router.SQLEngine, error) {
	if t.agent.catalog == nil {
		return nil, fmt.Errorf("%w: no databases registered", domain.ErrNotFound)
	}
	if name = strings.TrimSpace(name); name == "" {
		name = strings.TrimSpace(t.req.Search.DBName)
	}
	if name != "" {
		return t.agent.catalog.Lookup(name)
	}
	db, ok := t.agent.catalog.Default()
	if !ok {
		return nil, fmt.Errorf("%w: no databases registered", domain.ErrNotFound)
	}
	return db, nil
}

func (t *turn) addSQL(a answer.SQLArtifact) {
	table := a.Table
	t.artifacts = append(t.artifacts, Artifact{Kind: ArtifactSQL, Database: a.Database, SQL: a.SQL, Table: &table})
}
