package health

import (
	"context"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates the vector store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Check names.
const (
	CheckVectorStore = "vector_store"
	CheckEmbedding   = "embedding"
	CheckGraph       = "graph"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store     Pinger
	embedding EmbeddingChecker
	graph     GraphChecker
	logger    *zap.Logger
}

// Option configures optional checks.
type Option func(*Service)

// WithGraph adds the knowledge graph check. It only runs while the graph is enabled.
func WithGraph(g GraphChecker) Option {
	return func(s *Service) { s.graph = g }
}

// New creates a Service. store and embedding can be nil; a nil store
// (in-process backend) always passes.
func New(store Pinger, embedding EmbeddingChecker, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{store: store, embedding: embedding, logger: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks[CheckVectorStore] = CheckOK
	if s.store != nil {
		checks[CheckVectorStore] = s.result(CheckVectorStore, s.store.Ping(ctx))
	}
	if s.embedding != nil {
		checks[CheckEmbedding] = s.result(CheckEmbedding, s.embedding.HealthCheck(ctx))
	}
	if s.graph != nil && s.graph.Enabled() {
		checks[CheckGraph] = s.result(CheckGraph, s.graph.Available(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[CheckVectorStore] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) result(name string, err error) CheckResult {
	if err != nil {
		s.logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
