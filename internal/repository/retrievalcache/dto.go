package retrievalcache

import (
	"github.com/kailas-cloud/talkdb/internal/domain/chunk"
	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
	"github.com/kailas-cloud/talkdb/internal/domain/source"
)

type resultDTO struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Source    string            `json:"source"`
	Path      string            `json:"path,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Score     float64           `json:"score"`
	Retriever string            `json:"retriever,omitempty"`
}

func toDTOs(rs []retrieval.Result) []resultDTO {
	out := make([]resultDTO, len(rs))
	for i, r := range rs {
		out[i] = resultDTO{
			ID:        r.Chunk.ID(),
			Text:      r.Chunk.Text(),
			Source:    string(r.Chunk.Source()),
			Path:      r.Chunk.Path(),
			Metadata:  r.Chunk.Metadata(),
			Score:     r.Score,
			Retriever: r.Retriever,
		}
	}
	return out
}

func fromDTOs(ds []resultDTO) []retrieval.Result {
	out := make([]retrieval.Result, len(ds))
	for i, d := range ds {
		out[i] = retrieval.Result{
			Chunk:     chunk.Reconstruct(d.ID, d.Text, source.Source(d.Source), d.Path, d.Metadata),
			Score:     d.Score,
			Retriever: d.Retriever,
		}
	}
	return out
}
