// Package connectors loads raw documents from external systems.
package connectors

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

// Config is the connector-specific settings object of an indexing request.
type Config map[string]any

// String returns the value of key as a trimmed string.
func (c Config) String(key string) string {
	switch v := c[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Strings returns a list value. A comma-separated string is split.
func (c Config) Strings(key string) []string {
	var out []string
	switch v := c[key].(type) {
	case []string:
		out = v
	case []any:
		for _, it := range v {
			out = append(out, fmt.Sprint(it))
		}
	case string:
		out = strings.Split(v, ",")
	}
	res := out[:0:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			res = append(res, s)
		}
	}
	return res
}

// Require fails with domain.ErrInvalidRequest naming every missing key.
func (c Config) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if c.String(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing connector settings: %s", domain.ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// Connector loads documents for one source.
type Connector interface {
	Load(ctx context.Context, cfg Config) ([]chunk.Document, error)
}

// Registry dispatches loads by source.
type Registry struct {
	mu         sync.RWMutex
	connectors map[source.Source]Connector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[source.Source]Connector)}
}

// Register binds a connector to src.
func (r *Registry) Register(src source.Source, c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[src] = c
}

// Load runs the connector registered for src and stamps the source on
// every document.
func (r *Registry) Load(ctx context.Context, src source.Source, cfg Config) ([]chunk.Document, error) {
	r.mu.RLock()
	c, ok := r.connectors[src]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no connector for %q", domain.ErrUnsupportedSource, src)
	}

	docs, err := c.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		docs[i].Source = src
	}
	return docs, nil
}
