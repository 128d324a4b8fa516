// Package generation decorates generation backends with metrics and logging.
package generation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/logger"
)

// Backend is a generator that also supports function calling.
type Backend interface {
	domain.Generator
	domain.ToolCaller
}

// Metrics are the optional collectors updated per call.
type Metrics struct {
	Requests *prometheus.CounterVec   // labels: kind, status
	Duration *prometheus.HistogramVec // labels: kind
}

// Call kinds.
const (
	kindComplete = "complete"
	kindStream   = "stream"
	kindTools    = "tools"
)

// InstrumentedGenerator records every generation call and normalizes
// backend errors into domain.ErrGenerationFailure.
type InstrumentedGenerator struct {
	inner   Backend
	model   string
	metrics Metrics
	logger  *zap.Logger
}

// NewInstrumented wraps inner.
func NewInstrumented(inner Backend, model string, m Metrics, log *zap.Logger) *InstrumentedGenerator {
	if log == nil {
		log = zap.NewNop()
	}
	return &InstrumentedGenerator{inner: inner, model: model, metrics: m, logger: log}
}

// Generate implements domain.Generator.
func (g *InstrumentedGenerator) Generate(ctx context.Context, p domain.Prompt) (string, error) {
	start := time.Now()
	text, err := g.inner.Generate(ctx, p)
	g.observe(ctx, kindComplete, start, err)
	if err != nil {
		return "", wrap(err)
	}
	return text, nil
}

// GenerateStream implements domain.Generator. The call is recorded when the
// sequence ends, including when the consumer stops early.
func (g *InstrumentedGenerator) GenerateStream(ctx context.Context, p domain.Prompt) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		start := time.Now()
		var streamErr error
		defer func() { g.observe(ctx, kindStream, start, streamErr) }()

		for tok, err := range g.inner.GenerateStream(ctx, p) {
			if err != nil {
				streamErr = err
				yield("", wrap(err))
				return
			}
			if !yield(tok, nil) {
				return
			}
		}
	}
}

// Complete implements domain.ToolCaller.
func (g *InstrumentedGenerator) Complete(
	ctx context.Context, messages []domain.Message, tools []domain.Tool,
) (domain.Completion, error) {
	start := time.Now()
	c, err := g.inner.Complete(ctx, messages, tools)
	g.observe(ctx, kindTools, start, err)
	if err != nil {
		return domain.Completion{}, wrap(err)
	}
	return c, nil
}

// CompleteStream implements domain.ToolCaller.
func (g *InstrumentedGenerator) CompleteStream(
	ctx context.Context, messages []domain.Message, tools []domain.Tool,
) iter.Seq2[domain.CompletionDelta, error] {
	return func(yield func(domain.CompletionDelta, error) bool) {
		start := time.Now()
		var streamErr error
		defer func() { g.observe(ctx, kindStream, start, streamErr) }()

		for d, err := range g.inner.CompleteStream(ctx, messages, tools) {
			if err != nil {
				streamErr = err
				yield(domain.CompletionDelta{}, wrap(err))
				return
			}
			if !yield(d, nil) {
				return
			}
		}
	}
}

func (g *InstrumentedGenerator) observe(ctx context.Context, kind string, start time.Time, err error) {
	duration := time.Since(start)
	status := "success"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status = "canceled"
	default:
		status = "error"
	}

	if g.metrics.Requests != nil {
		g.metrics.Requests.WithLabelValues(kind, status).Inc()
	}
	if g.metrics.Duration != nil && err == nil {
		g.metrics.Duration.WithLabelValues(kind).Observe(duration.Seconds())
	}

	log := logger.FromContext(ctx, g.logger)
	if status == "error" {
		log.Error("Generation failed",
			zap.String("model", g.model), zap.String("kind", kind),
			zap.Duration("duration", duration), zap.Error(err))
		return
	}
	log.Debug("Generation completed",
		zap.String("model", g.model), zap.String("kind", kind),
		zap.String("status", status), zap.Duration("duration", duration))
}

func wrap(err error) error {
	if errors.Is(err, domain.ErrGenerationFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrGenerationFailure, err)
}
