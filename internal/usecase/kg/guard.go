package kg

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/domain"
)

var (
	fencePattern   = regexp.MustCompile("(?s)```(?:cypher|Cypher)?\\s*(.*?)```")
	literalPattern = regexp.MustCompile(`'(?:[^'\\]|\\.)*'|"(?:[^"\\]|\\.)*"|` + "`[^`]*`")
	commentPattern = regexp.MustCompile(`(?s)//[^\n]*|/\*.*?\*/`)
	writePattern   = regexp.MustCompile(`(?i)\b(create|merge|delete|detach|set|remove|drop|foreach)\b|\bload\s+csv\b`)
)

func extractCypher(reply string) string {
	s := reply
	if m := fencePattern.FindStringSubmatch(reply); m != nil {
		s = m[1]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "Cypher:")
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), "; \n\t"))
}

// checkReadOnly rejects Cypher that could modify the graph.
func checkReadOnly(cypher string) error {
	bare := literalPattern.ReplaceAllString(cypher, "''")
	bare = commentPattern.ReplaceAllString(bare, " ")
	bare = strings.TrimSpace(bare)
	if bare == "" {
		return fmt.Errorf("%w: empty statement", domain.ErrUnsafeQuery)
	}
	if strings.Contains(strings.TrimRight(bare, "; \n\t"), ";") {
		return fmt.Errorf("%w: multiple statements", domain.ErrUnsafeQuery)
	}
	if kw := writePattern.FindString(bare); kw != "" {
		return fmt.Errorf("%w: contains %s", domain.ErrUnsafeQuery, strings.ToUpper(kw))
	}
	return nil
}
