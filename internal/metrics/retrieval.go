package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval, routing and generation metrics.
var (
	RetrieverRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retriever_requests_total",
			Help:      "Retriever invocations by retriever kind and outcome",
		},
		[]string{"retriever", "status"}, // status: ok / error / timeout
	)

	RetrievalUnavailableTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_unavailable_total",
			Help:      "Queries where every retriever failed",
		},
	)

	RetrievalCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_cache_total",
			Help:      "Fused retrieval cache hits and misses",
		},
		[]string{"result"},
	)

	ScopeFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scope_fallbacks_total",
			Help:      "Scope substitutions made by the router",
		},
		[]string{"from", "to", "reason"},
	)

	GenerationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "LLM generation calls",
		},
		[]string{"kind", "status"}, // kind: complete / stream / tools
	)

	GenerationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "LLM generation latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"kind"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Chat sessions currently held in memory",
		},
	)
)
