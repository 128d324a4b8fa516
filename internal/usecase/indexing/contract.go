package indexing

import (
	"context"

	"github.com/kailas-cloud/talkdb/internal/connectors"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

// Loader fetches raw documents for a source.
type Loader interface {
	Load(ctx context.Context, src source.Source, cfg connectors.Config) ([]chunk.Document, error)
}

// ChunkStore persists embedded chunks per source.
type ChunkStore interface {
	Collection(src source.Source) string
	EnsureCollection(ctx context.Context, src source.Source) error
	Upsert(ctx context.Context, src source.Source, chunks []chunk.Chunk, vectors [][]float32) error
	Count(ctx context.Context, src source.Source) (int, error)
	Purge(ctx context.Context, src source.Source) (int, error)
}

// TokenCounter measures chunk size.
type TokenCounter interface {
	Count(text string) int
}
