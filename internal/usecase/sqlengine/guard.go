package sqlengine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/domain"
)

var (
	fencePattern   = regexp.MustCompile("(?s)```(?:sql|SQL)?\\s*(.*?)```")
	literalPattern = regexp.MustCompile(`'(?:[^']|'')*'|"(?:[^"]|"")*"|` + "`[^`]*`")
	commentPattern = regexp.MustCompile(`(?s)--[^\n]*|/\*.*?\*/`)
	writePattern   = regexp.MustCompile(`(?i)\b(insert|update|delete|merge|drop|alter|create|truncate|grant|revoke|attach|detach|vacuum|reindex|pragma|into)\b`)
)

// extractSQL pulls the statement out of a model reply: the first fenced block
// if any, otherwise the whole reply, without a trailing semicolon.
func extractSQL(reply string) string {
	s := reply
	if m := fencePattern.FindStringSubmatch(reply); m != nil {
		s = m[1]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "SQLQuery:")
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimRight(s, "; \n\t"))
}

// checkReadOnly accepts a single SELECT, WITH, VALUES or EXPLAIN statement
// with no write keywords outside string literals. INTO is rejected because
// SELECT ... INTO creates a table on Postgres and MySQL.
func checkReadOnly(stmt string) error {
	bare := commentPattern.ReplaceAllString(stmt, " ")
	bare = literalPattern.ReplaceAllString(bare, "''")
	bare = strings.TrimSpace(bare)
	if bare == "" {
		return fmt.Errorf("%w: empty statement", domain.ErrUnsafeQuery)
	}

	if strings.Contains(strings.TrimRight(bare, "; \n\t"), ";") {
		return fmt.Errorf("%w: multiple statements", domain.ErrUnsafeQuery)
	}

	words := strings.Fields(strings.TrimLeft(bare, "( "))
	if len(words) == 0 {
		return fmt.Errorf("%w: empty statement", domain.ErrUnsafeQuery)
	}
	first := strings.ToLower(words[0])
	switch first {
	case "select", "with", "values", "explain":
	default:
		return fmt.Errorf("%w: %s statements are not allowed", domain.ErrUnsafeQuery, first)
	}

	if kw := writePattern.FindString(bare); kw != "" {
		return fmt.Errorf("%w: contains %s", domain.ErrUnsafeQuery, strings.ToUpper(kw))
	}
	return nil
}
