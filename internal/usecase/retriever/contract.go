package retriever

import (
	"context"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

// ChunkSearcher is the read side of a chunk store.
type ChunkSearcher interface {
	SearchVector(ctx context.Context, src source.Source, vector []float32, k int) ([]retrieval.Result, error)
	SearchText(ctx context.Context, src source.Source, query string, k int) ([]retrieval.Result, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
