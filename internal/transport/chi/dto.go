package chi

import (
	"github.com/kailas-cloud/talkdb/internal/domain/answer"
	"github.com/kailas-cloud/talkdb/internal/usecase/agent"
	"github.com/kailas-cloud/talkdb/internal/usecase/indexing"
)

// SearchRequest is the body of POST /search and POST /chat.
type SearchRequest struct {
	Query     string   `json:"query"`
	Sources   []string `json:"sources"`
	Scope     string   `json:"scope"`
	UseHybrid *bool    `json:"use_hybrid"`
	DBName    string   `json:"db_name"`
	TopK      int      `json:"top_k"`
	SessionID string   `json:"session_id"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	SearchRequest
	Stream bool `json:"stream"`
}

// Fallback reports a scope substitution.
type Fallback struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// SearchResponse is the reply of POST /search.
type SearchResponse struct {
	Answer    string              `json:"answer"`
	Citations []answer.Citation   `json:"citations"`
	SQL       *answer.SQLArtifact `json:"sql,omitempty"`
	Origin    string              `json:"origin"`
	Scope     string              `json:"scope"`
	Fallback  *Fallback           `json:"fallback,omitempty"`
}

// Artifact is a tool output of a chat turn.
type Artifact struct {
	Kind     string        `json:"kind"`
	Database string        `json:"database,omitempty"`
	SQL      string        `json:"sql,omitempty"`
	Path     string        `json:"path,omitempty"`
	Table    *answer.Table `json:"table,omitempty"`
}

// ChatResponse is the reply of POST /chat.
type ChatResponse struct {
	SessionID string            `json:"session_id"`
	Answer    string            `json:"answer"`
	Citations []answer.Citation `json:"citations"`
	Artifacts []Artifact        `json:"artifacts"`
}

// RegisterSQLRequest is the body of POST /indexing/sql/register.
type RegisterSQLRequest struct {
	Name          string   `json:"name"`
	DSN           string   `json:"dsn"`
	IncludeTables []string `json:"include_tables"`
	Schema        string   `json:"schema"`
}

// RegisterSQLResponse reports whether an existing registration was replaced.
type RegisterSQLResponse struct {
	Name     string `json:"name"`
	Replaced bool   `json:"replaced"`
}

// SQLRequest is the body of POST /sql/ask and POST /sql/export.
// Query is accepted as an alias of Question.
type SQLRequest struct {
	Question string `json:"question"`
	Query    string `json:"query,omitempty"`
	DBName   string `json:"db_name"`
}

// SQLAskResponse is the reply of POST /sql/ask.
type SQLAskResponse struct {
	Answer   string   `json:"answer"`
	Database string   `json:"database"`
	SQL      string   `json:"sql"`
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
}

// SQLExportResponse is the reply of POST /sql/export.
type SQLExportResponse struct {
	FilePath string `json:"file_path"`
	SQL      string `json:"sql"`
	Rows     int    `json:"rows"`
}

// HealthResponse is the reply of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// SourcesResponse is the reply of GET /admin/sources.
type SourcesResponse struct {
	Collections []indexing.Collection `json:"collections"`
}

func artifactsToDTO(in []agent.Artifact) []Artifact {
	out := make([]Artifact, len(in))
	for i, a := range in {
		out[i] = Artifact{Kind: string(a.Kind), Database: a.Database, SQL: a.SQL, Path: a.Path, Table: a.Table}
	}
	return out
}

func nonNilRows(rows [][]any) [][]any {
	if rows == nil {
		return [][]any{}
	}
	return rows
}
