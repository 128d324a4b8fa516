package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/talkdb/internal/domain"
	"github.com/kailas-cloud/talkdb/internal/logger"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest             = "bad_request"
	CodeInvalidRequest         = "invalid_request"
	CodeNotFound               = "not_found"
	CodeUnsupportedSource      = "unsupported_source"
	CodeUnsafeQuery            = "unsafe_query"
	CodeNoTabularResult        = "no_tabular_result"
	CodeUnauthorized           = "unauthorized"
	CodeRateLimited            = "rate_limited"
	CodeRetrievalUnavailable   = "retrieval_unavailable"
	CodeGraphUnavailable       = "graph_unavailable"
	CodeGenerationFailure      = "generation_failure"
	CodeEmbeddingProviderError = "embedding_provider_error"
	CodeInternalError          = "internal_error"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorHandler maps one sentinel error to an HTTP status and code.
type errorHandler struct {
	sentinel error
	status   int
	code     string
}

// errorHandlers is ordered: the first matching sentinel wins.
var errorHandlers = []errorHandler{
	{domain.ErrInvalidRequest, http.StatusBadRequest, CodeInvalidRequest},
	{domain.ErrNotFound, http.StatusNotFound, CodeNotFound},
	{domain.ErrUnsupportedSource, http.StatusBadRequest, CodeUnsupportedSource},
	{domain.ErrUnsafeQuery, http.StatusBadRequest, CodeUnsafeQuery},
	{domain.ErrNoTabularResult, http.StatusUnprocessableEntity, CodeNoTabularResult},
	{domain.ErrUnauthorized, http.StatusUnauthorized, CodeUnauthorized},
	{domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited},
	{domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable, CodeRetrievalUnavailable},
	{domain.ErrGraphUnavailable, http.StatusServiceUnavailable, CodeGraphUnavailable},
	{domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError},
	{domain.ErrGenerationFailure, http.StatusBadGateway, CodeGenerationFailure},
}

// clientMessage keeps the wrapped context of request errors, which describe
// the caller's input, and reduces backend errors to their sentinel text.
func clientMessage(err error, sentinel error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrUnsupportedSource),
		errors.Is(err, domain.ErrNoTabularResult):
		return err.Error()
	default:
		return sentinel.Error()
	}
}

// mapError resolves err to a response. ok is false for unmapped errors.
func mapError(err error) (status int, resp ErrorResponse, ok bool) {
	for _, h := range errorHandlers {
		if errors.Is(err, h.sentinel) {
			return h.status, ErrorResponse{Code: h.code, Message: clientMessage(err, h.sentinel)}, true
		}
	}
	return http.StatusInternalServerError, ErrorResponse{Code: CodeInternalError, Message: "internal error"}, false
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	status, resp, ok := mapError(err)
	if ok {
		log.Warn("domain error", zap.Error(err))
	} else {
		log.Error("internal error", zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
