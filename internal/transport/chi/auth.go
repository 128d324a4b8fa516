package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// APIKeyHeader is the alternative to a Bearer token.
const APIKeyHeader = "X-API-Key"

// AuthMiddleware accepts a static key as "Authorization: Bearer <key>" or
// in the X-API-Key header. If apiKeys is empty, authentication is disabled.
func AuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := make([]string, 0, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			validKeys = append(validKeys, k)
		}
	}

	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			key, ok := requestKey(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized,
					"missing credentials: use Authorization: Bearer <key> or "+APIKeyHeader)
				return
			}
			if !validKey(validKeys, key) {
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestKey extracts the caller's key. A malformed Authorization header
// counts as present so it is rejected instead of falling through.
func requestKey(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(auth, bearerPrefix) {
			return "", true
		}
		return strings.TrimSpace(auth[len(bearerPrefix):]), true
	}
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return strings.TrimSpace(key), true
	}
	return "", false
}

func validKey(keys []string, key string) bool {
	if key == "" {
		return false
	}
	for _, k := range keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}
