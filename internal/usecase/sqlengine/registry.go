// Package sqlengine keeps the registered SQL databases and answers natural
// language questions against them.
package sqlengine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/sqlreg"
	"github.com/kailas-cloud/talkdb/internal/logger"
)

// Defaults for engines created by the registry.
const (
	DefaultMaxRows = 200
	DefaultTimeout = 30 * time.Second
)

// Registry maps names to engines. Reads run concurrently; registration is exclusive.
type Registry struct {
	open    Opener
	gen     Generator
	maxRows int
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.RWMutex
	engines map[string]*Engine
	order   []string
}

// NewRegistry creates an empty registry. A nil opener uses Open.
func NewRegistry(open Opener, gen Generator, maxRows int, timeout time.Duration, log *zap.Logger) *Registry {
	if open == nil {
		open = Open
	}
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		open:    open,
		gen:     gen,
		maxRows: maxRows,
		timeout: timeout,
		logger:  log,
		engines: make(map[string]*Engine),
	}
}

// Register opens the database and stores it under reg.Name. An existing
// entry with the same name is replaced: engines already handed out switch to
// the new pool and the old pool closes once its in-flight calls finish.
// replaced reports whether that happened. The connection is opened before the
// lock is taken.
func (r *Registry) Register(ctx context.Context, reg sqlreg.Registration) (replaced bool, err error) {
	reg = reg.Normalize()
	if err := reg.Validate(); err != nil {
		return false, err
	}
	driver, _ := reg.Driver()
	driverName, conn, err := reg.DriverName()
	if err != nil {
		return false, err
	}

	db, err := r.open(ctx, driverName, conn)
	if err != nil {
		return false, fmt.Errorf("register %s: %w", reg.Name, err)
	}

	next := &pool{reg: reg, driver: driver, db: db}

	r.mu.Lock()
	engine, replaced := r.engines[reg.Name]
	if replaced {
		engine.swap(next)
	} else {
		r.engines[reg.Name] = &Engine{
			gen:     r.gen,
			maxRows: r.maxRows,
			timeout: r.timeout,
			logger:  r.logger,
			cur:     next,
		}
		r.order = append(r.order, reg.Name)
	}
	r.mu.Unlock()

	log := logger.FromContext(ctx, r.logger)
	if replaced {
		log.Warn("SQL database re-registered, previous connection replaced",
			zap.String("db", reg.Name), zap.String("dsn", reg.Redacted()))
	} else {
		log.Info("SQL database registered", zap.String("db", reg.Name), zap.String("driver", driverName))
	}
	return replaced, nil
}

// Get returns the engine registered under name.
func (r *Registry) Get(name string) (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: sql database %q is not registered", domain.ErrNotFound, name)
	}
	return e, nil
}

// First returns the earliest registered engine that is still present.
func (r *Registry) First() (*Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return nil, false
	}
	return r.engines[r.order[0]], true
}

// Names returns registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Len returns the number of registered databases.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.engines)
}

// Close retires every pool and empties the registry. Pools in use close when
// their last call returns.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.engines {
		e.retire()
	}
	r.engines = make(map[string]*Engine)
	r.order = nil
}
