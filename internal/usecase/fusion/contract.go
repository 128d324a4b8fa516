package fusion

import (
	"context"

	"github.com/kailas-cloud/talkdb/internal/domain/retrieval"
)

// Cache memoizes fused result lists.
type Cache interface {
	Get(ctx context.Context, key string) ([]retrieval.Result, bool)
	Put(ctx context.Context, key string, rs []retrieval.Result)
}
