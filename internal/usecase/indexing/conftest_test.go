package indexing

import (
	"context"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/connectors"
	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

type fakeLoader struct {
	docs []chunk.Document
	err  error
	cfgs []connectors.Config
}

func (f *fakeLoader) Load(_ context.Context, _ source.Source, cfg connectors.Config) ([]chunk.Document, error) {
	f.cfgs = append(f.cfgs, cfg)
	return f.docs, f.err
}

// fakeEmbedder maps each text to a 2-d vector and counts batch calls.
type fakeEmbedder struct {
	batches []int
	err     error
	short   bool
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text)), 1}}, f.err
}

func (f *fakeEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	f.batches = append(f.batches, len(texts))
	if f.err != nil {
		return domain.BatchEmbeddingResult{}, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return domain.BatchEmbeddingResult{Embeddings: out, TotalTokens: len(texts)}, nil
}
