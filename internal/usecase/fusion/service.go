// Package fusion fans a query out to independent retrievers and merges their
// ranked lists into one deduplicated ranking.
package fusion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/logger"
)

// DefaultTimeout bounds a single retriever call.
const DefaultTimeout = 5 * time.Second

// PartialFailure records a retriever that failed while others succeeded.
// It is logged and reported, never returned as an error.
type PartialFailure struct {
	Retriever string
	Err       error
}

// Outcome is the fused ranking plus the retrievers that did not contribute.
type Outcome struct {
	Results  []retrieval.Result
	Failures []PartialFailure
}

// Metrics are the optional collectors updated by the Fuser.
type Metrics struct {
	Requests    *prometheus.CounterVec // labels: retriever, status
	Unavailable prometheus.Counter
	Cache       *prometheus.CounterVec // labels: result
}

// Fuser runs retrievers concurrently and fuses their results.
type Fuser struct {
	timeout time.Duration
	depth   int
	cache   Cache
	metrics Metrics
	logger  *zap.Logger
}

// Option configures a Fuser.
type Option func(*Fuser)

// WithCache enables result caching for fully successful retrievals.
func WithCache(c Cache) Option {
	return func(f *Fuser) { f.cache = c }
}

// WithDepth sets how many results each retriever is asked for before fusion.
// Requests with a larger topK use topK instead.
func WithDepth(n int) Option {
	return func(f *Fuser) { f.depth = n }
}

// WithMetrics sets the collectors to update.
func WithMetrics(m Metrics) Option {
	return func(f *Fuser) { f.metrics = m }
}

// New creates a Fuser with a per-retriever timeout.
func New(timeout time.Duration, log *zap.Logger, opts ...Option) *Fuser {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	f := &Fuser{timeout: timeout, logger: log}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type call struct {
	results []retrieval.Result
	err     error
}

// Retrieve queries every retriever with k = max(depth, topK), then fuses by
// mode and truncates to topK. Zero retrievers yield an empty outcome. When every
// retriever fails the error wraps domain.ErrRetrievalUnavailable.
func (f *Fuser) Retrieve(
	ctx context.Context, query string, retrievers []retrieval.Retriever, mode retrieval.Mode, topK int,
) (Outcome, error) {
	if len(retrievers) == 0 {
		return Outcome{Results: []retrieval.Result{}}, nil
	}
	if !mode.IsValid() {
		return Outcome{}, fmt.Errorf("%w: unknown fusion mode %q", domain.ErrInvalidRequest, mode)
	}

	var key string
	if f.cache != nil {
		key = cacheKey(query, retrievers, mode, topK)
		if rs, ok := f.cache.Get(ctx, key); ok {
			f.incCache("hit")
			return Outcome{Results: rs}, nil
		}
		f.incCache("miss")
	}

	k := max(f.depth, topK)
	calls := make([]call, len(retrievers))
	var g errgroup.Group
	for i, r := range retrievers {
		g.Go(func() error {
			calls[i] = f.invoke(ctx, r, query, k)
			return nil
		})
	}
	_ = g.Wait()

	log := logger.FromContext(ctx, f.logger)
	lists := make([][]retrieval.Result, 0, len(calls))
	var failures []PartialFailure
	for i, c := range calls {
		if c.err != nil {
			failures = append(failures, PartialFailure{Retriever: retrievers[i].Name(), Err: c.err})
			continue
		}
		lists = append(lists, c.results)
	}

	if len(lists) == 0 {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		if f.metrics.Unavailable != nil {
			f.metrics.Unavailable.Inc()
		}
		errs := make([]error, len(failures))
		for i, pf := range failures {
			errs[i] = fmt.Errorf("%s: %w", pf.Retriever, pf.Err)
		}
		log.Error("All retrievers failed", zap.Int("retrievers", len(retrievers)), zap.Error(errors.Join(errs...)))
		return Outcome{Failures: failures}, fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable, errors.Join(errs...))
	}

	for _, pf := range failures {
		log.Warn("Partial retrieval failure", zap.String("retriever", pf.Retriever), zap.Error(pf.Err))
	}

	var fused []retrieval.Result
	if mode == retrieval.ReciprocalRerank {
		fused = fuseRRF(lists, topK)
	} else {
		fused = fuseSimple(lists, topK)
	}
	if fused == nil {
		fused = []retrieval.Result{}
	}

	if f.cache != nil && len(failures) == 0 {
		f.cache.Put(ctx, key, fused)
	}
	return Outcome{Results: fused, Failures: failures}, nil
}

// invoke runs one retriever under its own deadline. A retriever that ignores
// ctx is abandoned once the deadline passes; its late result is discarded.
func (f *Fuser) invoke(ctx context.Context, r retrieval.Retriever, query string, k int) call {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	done := make(chan call, 1)
	go func() {
		rs, err := r.Retrieve(ctx, query, k)
		done <- call{results: rs, err: err}
	}()

	var c call
	select {
	case c = <-done:
	case <-ctx.Done():
		c = call{err: ctx.Err()}
	}

	switch {
	case c.err == nil:
		f.incRequest(r.Name(), "ok")
	case errors.Is(c.err, context.DeadlineExceeded):
		f.incRequest(r.Name(), "timeout")
		c.err = fmt.Errorf("timed out after %s: %w", f.timeout, c.err)
	default:
		f.incRequest(r.Name(), "error")
	}
	return c
}

func (f *Fuser) incRequest(name, status string) {
	if f.metrics.Requests == nil {
		return
	}
	kind, _, _ := strings.Cut(name, ":")
	f.metrics.Requests.WithLabelValues(kind, status).Inc()
}

func (f *Fuser) incCache(result string) {
	if f.metrics.Cache != nil {
		f.metrics.Cache.WithLabelValues(result).Inc()
	}
}

func cacheKey(query string, retrievers []retrieval.Retriever, mode retrieval.Mode, topK int) string {
	h := sha256.New()
	h.Write([]byte(mode))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(topK)))
	for _, r := range retrievers {
		h.Write([]byte{0})
		h.Write([]byte(r.Name()))
	}
	h.Write([]byte{0})
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}
