// Package indexing loads documents from connectors, splits, embeds and
// stores them.
package indexing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/connectors"
	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
	"github.com/kailas-cloud/talkdb/internal/logger"
)

// Defaults.
const (
	DefaultChunkTokens = 512
	DefaultBatchSize   = 64
)

// Report summarizes one indexing run.
type Report struct {
	Source    source.Source `json:"source"`
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Purged    int           `json:"purged,omitempty"`
}

// Collection describes the stored chunks of one source.
type Collection struct {
	Source     source.Source `json:"source"`
	Collection string        `json:"collection"`
	Chunks     int           `json:"chunks"`
}

// Service indexes connector output into the chunk store.
type Service struct {
	loader      Loader
	store       ChunkStore
	embedder    domain.Embedder
	counter     TokenCounter
	chunkTokens int
	batchSize   int
	logger      *zap.Logger
}

// New creates an indexing Service.
func New(
	loader Loader, store ChunkStore, embedder domain.Embedder, counter TokenCounter,
	chunkTokens, batchSize int, log *zap.Logger,
) *Service {
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		loader:      loader,
		store:       store,
		embedder:    embedder,
		counter:     counter,
		chunkTokens: chunkTokens,
		batchSize:   batchSize,
		logger:      log,
	}
}

// Index loads src with cfg and upserts its chunks. Chunk ids derive from
// source, path and text, so re-indexing unchanged content overwrites it.
func (s *Service) Index(ctx context.Context, src source.Source, cfg connectors.Config) (Report, error) {
	return s.run(ctx, src, cfg, false)
}

// Reindex replaces the stored chunks of src with a fresh load. Documents are
// loaded before anything is deleted, so a failing connector leaves the
// collection intact.
func (s *Service) Reindex(ctx context.Context, src source.Source, cfg connectors.Config) (Report, error) {
	return s.run(ctx, src, cfg, true)
}

func (s *Service) run(ctx context.Context, src source.Source, cfg connectors.Config, purge bool) (Report, error) {
	if !src.IsValid() {
		return Report{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedSource, src)
	}
	start := time.Now()
	log := logger.FromContext(ctx, s.logger)

	docs, err := s.loader.Load(ctx, src, cfg)
	if err != nil {
		return Report{}, fmt.Errorf("load %s: %w", src, err)
	}

	var purged int
	if purge {
		purged, err = s.store.Purge(ctx, src)
		if err != nil {
			return Report{}, fmt.Errorf("purge %s: %w", s.store.Collection(src), err)
		}
		log.Info("Source purged for re-index", zap.String("source", string(src)), zap.Int("chunks", purged))
	}

	chunks := s.chunk(src, docs)
	report := Report{Source: src, Documents: len(docs), Chunks: len(chunks), Purged: purged}
	if len(chunks) == 0 {
		return report, nil
	}

	if err := s.store.EnsureCollection(ctx, src); err != nil {
		return Report{}, fmt.Errorf("ensure collection %s: %w", s.store.Collection(src), err)
	}

	for offset := 0; offset < len(chunks); offset += s.batchSize {
		batch := chunks[offset:min(offset+s.batchSize, len(chunks))]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text()
		}

		res, err := domain.EmbedAll(ctx, s.embedder, texts)
		if err != nil {
			return Report{}, fmt.Errorf("embed batch at %d: %w", offset, err)
		}
		if len(res.Embeddings) != len(batch) {
			return Report{}, fmt.Errorf("%w: got %d embeddings for %d chunks",
				domain.ErrEmbeddingProviderError, len(res.Embeddings), len(batch))
		}
		domain.UsageFromContext(ctx).AddEmbedding(res.TotalTokens)

		if err := s.store.Upsert(ctx, src, batch, res.Embeddings); err != nil {
			return Report{}, fmt.Errorf("upsert batch at %d: %w", offset, err)
		}
	}

	log.Info("Source indexed",
		zap.String("source", string(src)),
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.Duration("duration", time.Since(start)),
	)
	return report, nil
}

// chunk splits documents into chunks, skipping blank text and duplicates.
func (s *Service) chunk(src source.Source, docs []chunk.Document) []chunk.Chunk {
	var out []chunk.Chunk
	seen := make(map[string]struct{})
	for _, d := range docs {
		meta := make(map[string]string, len(d.Metadata)+1)
		for k, v := range d.Metadata {
			meta[k] = v
		}
		if d.Title != "" {
			meta["title"] = d.Title
		}

		for _, piece := range split(d.Text, s.counter, s.chunkTokens) {
			c, err := chunk.New(src, d.Path, piece, meta)
			if err != nil {
				continue
			}
			if _, dup := seen[c.ID()]; dup {
				continue
			}
			seen[c.ID()] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// Sources reports the chunk count of every source collection.
func (s *Service) Sources(ctx context.Context) ([]Collection, error) {
	all := source.All()
	out := make([]Collection, 0, len(all))
	for _, src := range all {
		n, err := s.store.Count(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", src, err)
		}
		out = append(out, Collection{Source: src, Collection: s.store.Collection(src), Chunks: n})
	}
	return out, nil
}
