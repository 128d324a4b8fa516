package chi

import (
	"net/http"

	"github.com/kailas-cloud/talkdb/internal/domain/source"
	"github.com/kailas-cloud/talkdb/internal/usecase/health"
	"github.com/kailas-cloud/talkdb/internal/usecase/indexing"
)

// HealthCheck handles GET /health. Only an unreachable vector store is a 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.svc.Health == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: string(health.Healthy), Checks: map[string]string{}})
		return
	}
	report := s.svc.Health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status == health.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

// ListSources handles GET /admin/sources.
func (s *Server) ListSources(w http.ResponseWriter, r *http.Request) {
	if s.svc.Indexer == nil {
		unavailable(w, "indexing")
		return
	}
	cols, err := s.svc.Indexer.Sources(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if cols == nil {
		cols = make([]indexing.Collection, 0, len(source.All()))
	}
	writeJSON(w, http.StatusOK, SourcesResponse{Collections: cols})
}
