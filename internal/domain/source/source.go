package source

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/domain"
)

// Source is an ingestion origin. Each source owns one chunk collection.
type Source string

// Supported sources.
const (
	Confluence Source = "confluence"
	SharePoint Source = "sharepoint"
	OneDrive   Source = "onedrive"
	Teams      Source = "teams"
)

var all = []Source{Confluence, SharePoint, OneDrive, Teams}

// All returns every supported source in a stable order.
func All() []Source {
	out := make([]Source, len(all))
	copy(out, all)
	return out
}

// IsValid checks if the source is one of the supported values.
func (s Source) IsValid() bool {
	for _, v := range all {
		if s == v {
			return true
		}
	}
	return false
}

func (s Source) String() string { return string(s) }

// Parse converts a user-supplied name into a Source (case-insensitive).
func Parse(name string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(name)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedSource, name)
	}
	return s, nil
}

// ParseList parses names, dropping blanks and duplicates while keeping first-seen order.
func ParseList(names []string) ([]Source, error) {
	out := make([]Source, 0, len(names))
	seen := make(map[Source]struct{}, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		s, err := Parse(n)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}
