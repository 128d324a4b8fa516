package scope

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/domain"
)

// Scope is the retrieval strategy selected per request.
type Scope string

// Scope constants.
const (
	SQL    Scope = "sql"
	Vector Scope = "vector"
	All    Scope = "all"
	// KG routes to the knowledge graph, or to Vector when the graph is off or down.
	KG Scope = "kg"
)

// IsValid checks if the scope is one of the supported values.
func (s Scope) IsValid() bool {
	return s == SQL || s == Vector || s == All || s == KG
}

// Parse converts a request value into a Scope. Empty means def.
func Parse(v string, def Scope) (Scope, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return def, nil
	}
	s := Scope(v)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: scope must be one of sql, vector, all, kg; got %q", domain.ErrInvalidRequest, v)
	}
	return s, nil
}
