package answer

import "github.com/kailas-cloud/talkdb/internal/domain/retrieval"

// NoInformation is the answer text returned when no evidence was retrieved.
const NoInformation = "No information found in the selected sources to answer this question."

// Origin tells which evidence backs an answer.
type Origin string

// Answer origins.
const (
	OriginVector  Origin = "vector"
	OriginSQL     Origin = "sql"
	OriginSQLJoin Origin = "sql_join"
	OriginKG      Origin = "kg"
	OriginNone    Origin = "none"
)

// Citation links an answer back to one retrieved chunk.
type Citation struct {
	Source string  `json:"source"`
	Path   string  `json:"path"`
	DocID  string  `json:"doc_id"`
	Score  float64 `json:"score"`
}

// Table is a tabular query result.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Empty reports whether the table carries no rows.
func (t Table) Empty() bool { return len(t.Rows) == 0 }

// SQLArtifact replaces per-chunk citations for SQL-origin answers.
type SQLArtifact struct {
	Database string `json:"database"`
	SQL      string `json:"sql"`
	Table    Table  `json:"table"`
}

// Answer is a synthesized response plus its evidence.
type Answer struct {
	Text      string
	Citations []Citation
	SQL       *SQLArtifact
	Origin    Origin
}

// CitationsFrom builds citations in the same order and identity as results.
func CitationsFrom(results []retrieval.Result) []Citation {
	out := make([]Citation, len(results))
	for i, r := range results {
		out[i] = Citation{
			Source: string(r.Chunk.Source()),
			Path:   r.Chunk.Path(),
			DocID:  r.Chunk.ID(),
			Score:  r.Score,
		}
	}
	return out
}

// Empty returns the well-formed no-evidence answer.
func Empty() Answer {
	return Answer{Text: NoInformation, Citations: []Citation{}, Origin: OriginNone}
}
