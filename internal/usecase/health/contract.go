package health

import "context"

// Pinger checks vector store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}

// GraphChecker reports knowledge graph availability.
type GraphChecker interface {
	Enabled() bool
	Available(ctx context.Context) error
}
