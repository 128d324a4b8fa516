package domain

import "errors"

var (
	// ErrInvalidRequest signals a missing or malformed request parameter.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound signals a database, collection or session that was never registered.
	ErrNotFound = errors.New("not found")
	// ErrUnsupportedSource signals an unknown ingestion source.
	ErrUnsupportedSource = errors.New("unsupported source")
	// ErrRetrievalUnavailable signals that every retriever for a query failed.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrGenerationFailure signals a generation backend error or timeout.
	ErrGenerationFailure = errors.New("generation failure")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGraphUnavailable signals an unreachable or disabled graph backend.
	ErrGraphUnavailable = errors.New("graph backend unavailable")
	// ErrUnsafeQuery signals a generated SQL or Cypher statement that would write.
	ErrUnsafeQuery = errors.New("unsafe query")
	// ErrNoTabularResult signals an export request whose query produced no table.
	ErrNoTabularResult = errors.New("no tabular result")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnauthorized signals a missing or invalid API key.
	ErrUnauthorized = errors.New("unauthorized")
)
