// Package neo4j adapts a Neo4j database to the graph backend contract.
package neo4j

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kailas-cloud/talkdb/internal/domain/answer"
)

// Config holds connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
	MaxRows  int
}

type runFunc func(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error)

// Graph runs read-only Cypher against one database.
type Graph struct {
	driver  neo4j.DriverWithContext
	run     runFunc
	ping    func(ctx context.Context) error
	maxRows int
}

// New creates a driver. No connection is made until the first call.
func New(cfg Config) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if cfg.Database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(cfg.Database))
	}

	g := &Graph{driver: driver, maxRows: cfg.MaxRows}
	g.run = func(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error) {
		return neo4j.ExecuteQuery(ctx, driver, cypher, params, neo4j.EagerResultTransformer, opts...)
	}
	g.ping = driver.VerifyConnectivity
	return g, nil
}

// Ping verifies that the server is reachable.
func (g *Graph) Ping(ctx context.Context) error {
	if err := g.ping(ctx); err != nil {
		return fmt.Errorf("neo4j connectivity: %w", err)
	}
	return nil
}

// Close releases the driver.
func (g *Graph) Close(ctx context.Context) error {
	if g.driver == nil {
		return nil
	}
	return g.driver.Close(ctx)
}

// Query runs cypher and returns the records as a table.
func (g *Graph) Query(ctx context.Context, cypher string) (answer.Table, error) {
	res, err := g.run(ctx, cypher, nil)
	if err != nil {
		return answer.Table{}, fmt.Errorf("run cypher: %w", err)
	}

	table := answer.Table{Columns: res.Keys, Rows: make([][]any, 0, len(res.Records))}
	for _, rec := range res.Records {
		if g.maxRows > 0 && len(table.Rows) >= g.maxRows {
			break
		}
		row := make([]any, len(rec.Values))
		for i, v := range rec.Values {
			row[i] = plain(v)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// Schema lists node labels with their properties and the relationship
// patterns between labels, one per line.
func (g *Graph) Schema(ctx context.Context) (string, error) {
	props, err := g.run(ctx,
		`CALL db.schema.nodeTypeProperties() YIELD nodeLabels, propertyName
RETURN nodeLabels, collect(DISTINCT propertyName) AS properties`, nil)
	if err != nil {
		return "", fmt.Errorf("read node properties: %w", err)
	}
	rels, err := g.run(ctx,
		`MATCH (a)-[r]->(b)
RETURN DISTINCT labels(a) AS source, type(r) AS rel, labels(b) AS target
LIMIT 200`, nil)
	if err != nil {
		return "", fmt.Errorf("read relationship patterns: %w", err)
	}

	var lines []string
	for _, rec := range props.Records {
		labels := strings.Join(toStrings(value(rec, "nodeLabels")), ":")
		if labels == "" {
			continue
		}
		ps := toStrings(value(rec, "properties"))
		sort.Strings(ps)
		lines = append(lines, fmt.Sprintf("(:%s {%s})", labels, strings.Join(ps, ", ")))
	}
	for _, rec := range rels.Records {
		lines = append(lines, fmt.Sprintf("(:%s)-[:%v]->(:%s)",
			strings.Join(toStrings(value(rec, "source")), ":"),
			value(rec, "rel"),
			strings.Join(toStrings(value(rec, "target")), ":")))
	}
	return strings.Join(lines, "\n"), nil
}

func value(rec *neo4j.Record, key string) any {
	v, _ := rec.Get(key)
	return v
}

func toStrings(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it != nil {
			out = append(out, fmt.Sprint(it))
		}
	}
	return out
}

// plain flattens graph entities into JSON-friendly values.
func plain(v any) any {
	switch x := v.(type) {
	case neo4j.Node:
		m := make(map[string]any, len(x.Props)+1)
		for k, p := range x.Props {
			m[k] = plain(p)
		}
		m["_labels"] = x.Labels
		return m
	case neo4j.Relationship:
		m := make(map[string]any, len(x.Props)+1)
		for k, p := range x.Props {
			m[k] = plain(p)
		}
		m["_type"] = x.Type
		return m
	case []any:
		out := make([]any, len(x))
		for i, it := range x {
			out[i] = plain(it)
		}
		return out
	default:
		return v
	}
}
