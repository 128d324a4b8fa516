package talkdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation labels, one per Client method.
const (
	opSearch      = "search"
	opChat        = "chat"
	opChatStream  = "chat_stream"
	opIndex       = "index"
	opReindex     = "reindex"
	opRegisterSQL = "register_sql"
	opAskSQL      = "ask_sql"
	opExportSQL   = "export_sql"
	opHealth      = "health"
	opSources     = "sources"
)

// Outcomes that are not a server error code.
const (
	outcomeOK        = "ok"
	outcomeCanceled  = "canceled"
	outcomeTransport = "transport"
)

type clientMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "talkdb",
		Subsystem: "client",
		Name:      "calls_total",
		Help:      "Client calls by operation and outcome (ok, server error code, canceled, transport).",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "talkdb",
		Subsystem: "client",
		Name:      "call_duration_seconds",
		Help:      "Client call latency including answer generation.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"})

	var err error
	if calls, err = reuseCollector(reg, calls); err != nil {
		return nil, err
	}
	if duration, err = reuseCollector(reg, duration); err != nil {
		return nil, err
	}
	return &clientMetrics{calls: calls, duration: duration}, nil
}

// reuseCollector registers c, or returns the collector already registered
// under the same descriptor so several clients can share one registry.
func reuseCollector[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("talkdb: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("talkdb: metric already registered as %T", are.ExistingCollector)
	}
	return existing, nil
}

// observer logs and counts Client calls. A nil observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *clientMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

// outcome maps a call error to its metric label. Server replies keep their
// error code so dashboards can tell unsafe_query from generation_failure.
func outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return outcomeCanceled
	}
	return outcomeTransport
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	result := outcome(err)

	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(op, result).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}

	var apiErr *APIError
	switch {
	case err == nil:
		o.logger.Debug("talkdb call completed", "op", op, "duration", dur)
	case errors.As(err, &apiErr):
		o.logger.Warn("talkdb call rejected",
			"op", op, "status", apiErr.Status, "code", result, "duration", dur, "error", apiErr.Message)
	default:
		o.logger.Warn("talkdb call failed", "op", op, "outcome", result, "duration", dur, "error", err)
	}
}
