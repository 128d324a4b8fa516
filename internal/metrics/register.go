package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var registerOnce sync.Once

// Register registers all talkdb collectors with the default registry.
// Safe to call more than once; main and test setup both call it.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestDuration,
			httpRequestsTotal,
			EmbeddingRequestsTotal,
			EmbeddingRequestDuration,
			EmbeddingTokensTotal,
			EmbeddingErrorsTotal,
			EmbeddingCacheTotal,
			RetrieverRequestsTotal,
			RetrievalUnavailableTotal,
			RetrievalCacheTotal,
			ScopeFallbacksTotal,
			GenerationRequestsTotal,
			GenerationDuration,
			SessionsActive,
		)
	})
}
