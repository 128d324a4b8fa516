package talkdb

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/talkdb/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest         = domain.ErrInvalidRequest
	ErrNotFound               = domain.ErrNotFound
	ErrUnsupportedSource      = domain.ErrUnsupportedSource
	ErrUnsafeQuery            = domain.ErrUnsafeQuery
	ErrNoTabularResult        = domain.ErrNoTabularResult
	ErrUnauthorized           = domain.ErrUnauthorized
	ErrRateLimited            = domain.ErrRateLimited
	ErrRetrievalUnavailable   = domain.ErrRetrievalUnavailable
	ErrGraphUnavailable       = domain.ErrGraphUnavailable
	ErrGenerationFailure      = domain.ErrGenerationFailure
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)

var codeErrors = map[string]error{
	"bad_request":              ErrInvalidRequest,
	"invalid_request":          ErrInvalidRequest,
	"not_found":                ErrNotFound,
	"unsupported_source":       ErrUnsupportedSource,
	"unsafe_query":             ErrUnsafeQuery,
	"no_tabular_result":        ErrNoTabularResult,
	"unauthorized":             ErrUnauthorized,
	"rate_limited":             ErrRateLimited,
	"retrieval_unavailable":    ErrRetrievalUnavailable,
	"graph_unavailable":        ErrGraphUnavailable,
	"generation_failure":       ErrGenerationFailure,
	"embedding_provider_error": ErrEmbeddingProviderError,
}

// APIError is a non-2xx reply. It matches the sentinel of its code with errors.Is.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("talkdb: %d %s: %s", e.Status, e.Code, e.Message)
}

// Is reports whether target is the sentinel for the error code.
func (e *APIError) Is(target error) bool {
	sentinel, ok := codeErrors[e.Code]
	return ok && errors.Is(sentinel, target)
}
