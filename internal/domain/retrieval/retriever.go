package retrieval

import "context"

// Retriever returns up to k results for a query, best first. Scores are
// local to the retriever and not comparable across retrievers.
type Retriever interface {
	Name() string
	Retrieve(ctx context.Context, query string, k int) ([]Result, error)
}
