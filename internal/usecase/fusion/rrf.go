package fusion

import (
	"cmp"
	"slices"
	"strings"

	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges ranked lists via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) over the lists where d appears, rank 1-based.
// The first occurrence of a chunk (in list order) supplies its payload.
func fuseRRF(lists [][]retrieval.Result, topK int) []retrieval.Result {
	merged := make(map[string]int)
	var out []retrieval.Result

	for _, list := range lists {
		seen := make(map[string]struct{}, len(list))
		for rank, r := range list {
			id := r.Chunk.ID()
			// a retriever that repeats a chunk only counts its best rank
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			s := 1.0 / float64(rrfK+rank+1)
			if i, ok := merged[id]; ok {
				out[i].Score += s
				continue
			}
			merged[id] = len(out)
			r.Score = s
			out = append(out, r)
		}
	}

	sortByScoreThenID(out)
	return truncate(out, topK)
}

// fuseSimple concatenates lists in order, keeps one entry per chunk with its
// highest score, and stable-sorts by score so ties keep concatenation order.
func fuseSimple(lists [][]retrieval.Result, topK int) []retrieval.Result {
	merged := make(map[string]int)
	var out []retrieval.Result

	for _, list := range lists {
		for _, r := range list {
			id := r.Chunk.ID()
			if i, ok := merged[id]; ok {
				if r.Score > out[i].Score {
					out[i].Score = r.Score
				}
				continue
			}
			merged[id] = len(out)
			out = append(out, r)
		}
	}

	slices.SortStableFunc(out, func(a, b retrieval.Result) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return truncate(out, topK)
}

func sortByScoreThenID(rs []retrieval.Result) {
	slices.SortFunc(rs, func(a, b retrieval.Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.Chunk.ID(), b.Chunk.ID())
	})
}

func truncate(rs []retrieval.Result, topK int) []retrieval.Result {
	if topK >= 0 && len(rs) > topK {
		return rs[:topK]
	}
	return rs
}
