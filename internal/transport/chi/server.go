// Package chi is the HTTP surface of talkdb.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/metrics"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Services are the use cases behind the routes. Agent, Indexer, Registry,
// Catalog, Exporter and Memory may be nil; their routes then answer 404.
type Services struct {
	Router   QueryRouter
	Agent    ChatAgent
	Indexer  Indexer
	Registry SQLRegistry
	Catalog  SQLCatalog
	Synth    TableSynthesizer
	Exporter Exporter
	Memory   SessionMemory
	Health   HealthChecker
}

// Options tune the HTTP surface.
type Options struct {
	APIKeys        []string
	RateLimitRPS   float64
	RateLimitBurst int
	MaxTopK        int
	// Metrics serves GET /metrics; promhttp.Handler() when nil.
	Metrics http.Handler
}

// Server implements the talkdb HTTP API.
type Server struct {
	svc    Services
	opts   Options
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(svc Services, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	return &Server{svc: svc, opts: opts, logger: logger}
}

// Handler builds the router with the middleware chain.
func (s *Server) Handler() http.Handler {
	r := gochi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(JSONRecoverer(s.logger))
	r.Use(AuthMiddleware(s.opts.APIKeys))
	r.Use(RateLimitMiddleware(s.opts.RateLimitRPS, s.opts.RateLimitBurst))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Post("/search", s.Search)
	r.Post("/chat", s.Chat)
	r.Get("/chat/stream", s.ChatStream)
	r.Post("/indexing/sql/register", s.RegisterSQL)
	r.Post("/indexing/{source}", s.IndexSource)
	r.Post("/sql/ask", s.AskSQL)
	r.Post("/sql/export", s.ExportSQL)
	r.Get("/health", s.HealthCheck)
	r.Get("/admin/sources", s.ListSources)
	r.Method(http.MethodGet, "/metrics", s.opts.Metrics)

	return r
}

// decodeJSON reads a JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
	return false
}

func unavailable(w http.ResponseWriter, what string) {
	writeError(w, http.StatusNotFound, CodeNotFound, what+" is not configured")
}
