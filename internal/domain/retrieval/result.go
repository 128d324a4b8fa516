package retrieval

import "github.com/kailas-cloud/talkdb/internal/domain/chunk"

// Result is a chunk paired with a retriever-local relevance score.
type Result struct {
	Chunk     chunk.Chunk
	Score     float64
	Retriever string
}

// IDs returns the chunk ids in order.
func IDs(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Chunk.ID()
	}
	return out
}
