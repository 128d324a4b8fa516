// Package router picks the retrieval strategy for a query scope.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/scope"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
	"github.com/kailas-cloud/talkdb/internal/logger"
)

// DefaultTopK is used when a request does not set one.
const DefaultTopK = 5

// Fallback reasons.
const (
	ReasonGraphDisabled    = "graph_disabled"
	ReasonGraphUnreachable = "graph_unreachable"
	ReasonNoDatabase       = "no_database"
)

// Request selects a strategy.
type Request struct {
	Scope   scope.Scope
	Sources []source.Source
	Hybrid  bool
	DBName  string
	TopK    int
}

// Route is the engine chosen for a request. Effective differs from Requested
// only when Fallback is set, and Reason then says why.
type Route struct {
	Engine    Engine
	Requested scope.Scope
	Effective scope.Scope
	Database  string
	Fallback  bool
	Reason    string
}

// Router builds engines per request.
type Router struct {
	factory   RetrieverFactory
	fuser     Fuser
	synth     Synthesizer
	catalog   SQLCatalog
	graph     Graph
	fallbacks *prometheus.CounterVec
	logger    *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithGraph enables the kg scope.
func WithGraph(g Graph) Option {
	return func(r *Router) { r.graph = g }
}

// WithFallbackCounter counts scope substitutions by from, to and reason.
func WithFallbackCounter(c *prometheus.CounterVec) Option {
	return func(r *Router) { r.fallbacks = c }
}

// New creates a Router.
func New(factory RetrieverFactory, fuser Fuser, synth Synthesizer, catalog SQLCatalog, log *zap.Logger, opts ...Option) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{factory: factory, fuser: fuser, synth: synth, catalog: catalog, logger: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route resolves req into an executable engine. Validation errors are
// returned here; nothing is executed until Engine.Query.
func (r *Router) Route(ctx context.Context, req Request) (Route, error) {
	if !req.Scope.IsValid() {
		return Route{}, fmt.Errorf("%w: unknown scope %q", domain.ErrInvalidRequest, req.Scope)
	}
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}
	route := Route{Requested: req.Scope, Effective: req.Scope}

	switch req.Scope {
	case scope.SQL:
		name := strings.TrimSpace(req.DBName)
		if name == "" {
			return Route{}, fmt.Errorf("%w: db_name is required for sql scope", domain.ErrInvalidRequest)
		}
		db, err := r.lookup(name)
		if err != nil {
			return Route{}, err
		}
		route.Database = db.Name()
		route.Engine = &sqlEngine{db: db, synth: r.synth}

	case scope.Vector:
		route.Engine = r.vector(req)

	case scope.KG:
		if reason, err := r.graphUnavailable(ctx); reason != "" {
			r.fallback(ctx, &route, scope.Vector, reason, err)
			route.Engine = r.vector(req)
			break
		}
		route.Engine = &kgEngine{graph: r.graph}

	case scope.All:
		db, err := r.joinDatabase(req.DBName)
		if err != nil {
			return Route{}, err
		}
		if db == nil {
			r.fallback(ctx, &route, scope.Vector, ReasonNoDatabase, nil)
			route.Engine = r.vector(req)
			break
		}
		route.Database = db.Name()
		route.Engine = &joinEngine{db: db, vector: r.vector(req), synth: r.synth, logger: r.logger}
	}

	return route, nil
}

func (r *Router) vector(req Request) *vectorEngine {
	return &vectorEngine{
		factory: r.factory,
		fuser:   r.fuser,
		synth:   r.synth,
		sources: req.Sources,
		hybrid:  req.Hybrid,
		topK:    req.TopK,
	}
}

func (r *Router) lookup(name string) (SQLEngine, error) {
	if r.catalog == nil {
		return nil, fmt.Errorf("%w: database %q", domain.ErrNotFound, name)
	}
	return r.catalog.Lookup(name)
}

// joinDatabase returns the named database, or the first registered one when
// no name is given. A nil engine with nil error means none is registered.
func (r *Router) joinDatabase(name string) (SQLEngine, error) {
	if name = strings.TrimSpace(name); name != "" {
		return r.lookup(name)
	}
	if r.catalog == nil {
		return nil, nil
	}
	db, ok := r.catalog.Default()
	if !ok {
		return nil, nil
	}
	return db, nil
}

func (r *Router) graphUnavailable(ctx context.Context) (string, error) {
	if r.graph == nil || !r.graph.Enabled() {
		return ReasonGraphDisabled, nil
	}
	if err := r.graph.Available(ctx); err != nil {
		return ReasonGraphUnreachable, err
	}
	return "", nil
}

func (r *Router) fallback(ctx context.Context, route *Route, to scope.Scope, reason string, cause error) {
	route.Effective = to
	route.Fallback = true
	route.Reason = reason

	fields := []zap.Field{
		zap.String("from", string(route.Requested)),
		zap.String("to", string(to)),
		zap.String("reason", reason),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	logger.FromContext(ctx, r.logger).Warn("Scope fallback", fields...)

	if r.fallbacks != nil {
		r.fallbacks.WithLabelValues(string(route.Requested), string(to), reason).Inc()
	}
}
