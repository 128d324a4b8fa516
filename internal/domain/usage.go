package domain

import (
	"context"
	"sync/atomic"
)

type usageKey struct{}

// RequestUsage collects token usage for a single HTTP request.
// The handler stores a pointer in the context; embedders and generators add to it
// from any goroutine; the handler reports it in response headers.
type RequestUsage struct {
	embeddingTokens  atomic.Int64
	promptTokens     atomic.Int64
	completionTokens atomic.Int64
}

// NewContextWithUsage returns a context carrying a fresh usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{}
	return context.WithValue(ctx, usageKey{}, u), u
}

// UsageFromContext extracts the usage collector. Returns nil if not set.
func UsageFromContext(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(usageKey{}).(*RequestUsage)
	return u
}

// AddEmbedding records embedding tokens. Nil-safe.
func (u *RequestUsage) AddEmbedding(n int) {
	if u != nil {
		u.embeddingTokens.Add(int64(n))
	}
}

// AddCompletion records prompt and completion tokens of a generation call. Nil-safe.
func (u *RequestUsage) AddCompletion(prompt, completion int) {
	if u != nil {
		u.promptTokens.Add(int64(prompt))
		u.completionTokens.Add(int64(completion))
	}
}

// EmbeddingTokens returns the embedding tokens recorded so far.
func (u *RequestUsage) EmbeddingTokens() int64 { return u.embeddingTokens.Load() }

// PromptTokens returns the generation prompt tokens recorded so far.
func (u *RequestUsage) PromptTokens() int64 { return u.promptTokens.Load() }

// CompletionTokens returns the generation completion tokens recorded so far.
func (u *RequestUsage) CompletionTokens() int64 { return u.completionTokens.Load() }
