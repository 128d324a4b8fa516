package sqlengine

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/domain/sqlreg"
	"github.com/kailas-cloud/talkdb/internal/logger"
)

const text2SQLPrompt = `You translate questions into a single read-only SQL query.
Dialect: %s.
Only use the tables and columns listed below. Return only the SQL, no explanation.

Schema:
%s`

// Result is a generated statement and the rows it returned.
type Result struct {
	SQL   string
	Table answer.Table
}

// Engine answers questions against one registered database. Re-registering
// the name swaps the pool underneath; callers holding the Engine keep working.
type Engine struct {
	gen     Generator
	maxRows int
	timeout time.Duration
	logger  *zap.Logger

	mu  sync.Mutex
	cur *pool
}

// pool is one opened connection. It is closed once it has been replaced and
// its last user has released it.
type pool struct {
	reg    sqlreg.Registration
	driver sqlreg.Driver
	db     *sql.DB

	schemaMu sync.Mutex
	schema   string

	// guarded by Engine.mu
	users   int
	retired bool
}

// Name returns the registration name.
func (e *Engine) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur.reg.Name
}

// Driver returns the database family.
func (e *Engine) Driver() sqlreg.Driver {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur.driver
}

func (e *Engine) acquire() *pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cur.users++
	return e.cur
}

func (e *Engine) release(p *pool) {
	e.mu.Lock()
	p.users--
	done := p.retired && p.users == 0
	e.mu.Unlock()
	if done {
		e.closePool(p)
	}
}

// swap installs next and retires the current pool.
func (e *Engine) swap(next *pool) {
	e.mu.Lock()
	old := e.cur
	e.cur = next
	old.retired = true
	done := old.users == 0
	e.mu.Unlock()
	if done {
		e.closePool(old)
	}
}

// retire closes the current pool after in-flight calls finish.
func (e *Engine) retire() {
	e.mu.Lock()
	p := e.cur
	p.retired = true
	done := p.users == 0
	e.mu.Unlock()
	if done {
		e.closePool(p)
	}
}

func (e *Engine) closePool(p *pool) {
	if err := p.db.Close(); err != nil {
		e.logger.Warn("Failed to close sql connection", zap.String("db", p.reg.Name), zap.Error(err))
	}
}

// Ask translates question into SQL, checks that it is read-only and runs it.
func (e *Engine) Ask(ctx context.Context, question string) (Result, error) {
	if strings.TrimSpace(question) == "" {
		return Result{}, fmt.Errorf("%w: question is required", domain.ErrInvalidRequest)
	}

	p := e.acquire()
	defer e.release(p)

	schema, err := e.schema(ctx, p)
	if err != nil {
		return Result{}, err
	}

	reply, err := e.gen.Generate(ctx, domain.UserPrompt(fmt.Sprintf(text2SQLPrompt, p.driver, schema), question))
	if err != nil {
		return Result{}, fmt.Errorf("%w: text to sql: %w", domain.ErrGenerationFailure, err)
	}

	stmt := extractSQL(reply)
	if err := checkReadOnly(stmt); err != nil {
		logger.FromContext(ctx, e.logger).Warn("Rejected generated SQL",
			zap.String("db", p.reg.Name), zap.String("sql", stmt), zap.Error(err))
		return Result{SQL: stmt}, err
	}

	table, err := e.query(ctx, p, stmt)
	if err != nil {
		return Result{SQL: stmt}, err
	}
	return Result{SQL: stmt, Table: table}, nil
}

// Artifact pairs a result with the database name.
func (e *Engine) Artifact(r Result) answer.SQLArtifact {
	return answer.SQLArtifact{Database: e.Name(), SQL: r.SQL, Table: r.Table}
}

// Query runs a statement and returns at most maxRows rows.
func (e *Engine) Query(ctx context.Context, stmt string) (answer.Table, error) {
	p := e.acquire()
	defer e.release(p)
	return e.query(ctx, p, stmt)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// query runs stmt inside a read-only transaction on Postgres and MySQL.
// SQLite relies on checkReadOnly alone.
func (e *Engine) query(ctx context.Context, p *pool, stmt string) (answer.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var q querier = p.db
	if p.driver != sqlreg.SQLite {
		tx, err := p.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
		if err != nil {
			return answer.Table{}, fmt.Errorf("begin read-only transaction on %s: %w", p.reg.Name, err)
		}
		defer func() { _ = tx.Rollback() }()
		q = tx
	}

	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return answer.Table{}, fmt.Errorf("execute sql on %s: %w", p.reg.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return answer.Table{}, fmt.Errorf("read columns: %w", err)
	}

	table := answer.Table{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if e.maxRows > 0 && len(table.Rows) >= e.maxRows {
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return answer.Table{}, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		table.Rows = append(table.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return answer.Table{}, fmt.Errorf("iterate rows: %w", err)
	}
	return table, nil
}

// Schema describes the exposed tables as "table(column type, ...)" lines.
// It is introspected once per connection and cached; failures are retried on
// the next call.
func (e *Engine) Schema(ctx context.Context) (string, error) {
	p := e.acquire()
	defer e.release(p)
	return e.schema(ctx, p)
}

func (e *Engine) schema(ctx context.Context, p *pool) (string, error) {
	p.schemaMu.Lock()
	defer p.schemaMu.Unlock()
	if p.schema != "" {
		return p.schema, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		cols []column
		err  error
	)
	switch p.driver {
	case sqlreg.Postgres:
		cols, err = infoSchemaColumns(ctx, p.db,
			`SELECT table_name, column_name, data_type FROM information_schema.columns
WHERE table_schema = $1 ORDER BY table_name, ordinal_position`, orDefault(p.reg.Schema, "public"))
	case sqlreg.MySQL:
		if p.reg.Schema != "" {
			cols, err = infoSchemaColumns(ctx, p.db,
				`SELECT table_name, column_name, data_type FROM information_schema.columns
WHERE table_schema = ? ORDER BY table_name, ordinal_position`, p.reg.Schema)
		} else {
			cols, err = infoSchemaColumns(ctx, p.db,
				`SELECT table_name, column_name, data_type FROM information_schema.columns
WHERE table_schema = DATABASE() ORDER BY table_name, ordinal_position`)
		}
	default:
		cols, err = sqliteColumns(ctx, p.db)
	}
	if err != nil {
		return "", fmt.Errorf("introspect %s: %w", p.reg.Name, err)
	}

	p.schema = renderSchema(cols, p.reg.IncludeTables)
	return p.schema, nil
}

type column struct {
	table, name, typ string
}

func infoSchemaColumns(ctx context.Context, db *sql.DB, query string, args ...any) ([]column, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []column
	for rows.Next() {
		var c column
		if err := rows.Scan(&c.table, &c.name, &c.typ); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func sqliteColumns(ctx context.Context, db *sql.DB) ([]column, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		tables = append(tables, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var cols []column
	for _, t := range tables {
		info, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, t))
		if err != nil {
			return nil, err
		}
		for info.Next() {
			var (
				cid, notNull, pk int
				name, typ        string
				dflt             sql.NullString
			)
			if err := info.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
				info.Close()
				return nil, err
			}
			cols = append(cols, column{table: t, name: name, typ: typ})
		}
		info.Close()
		if err := info.Err(); err != nil {
			return nil, err
		}
	}
	return cols, nil
}

func renderSchema(cols []column, include []string) string {
	var b strings.Builder
	var current string
	for _, c := range cols {
		if len(include) > 0 && !slices.Contains(include, c.table) {
			continue
		}
		if c.table != current {
			if current != "" {
				b.WriteString(")\n")
			}
			b.WriteString(c.table + "(")
			current = c.table
		} else {
			b.WriteString(", ")
		}
		b.WriteString(c.name)
		if c.typ != "" {
			b.WriteString(" " + strings.ToLower(c.typ))
		}
	}
	if current != "" {
		b.WriteString(")")
	}
	return b.String()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
