package chi

import (
	"net"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	visitorIdle    = 3 * time.Minute
	visitorCleanup = time.Minute
)

// RateLimitMiddleware applies a token bucket per client. Clients are keyed
// by API key when one is sent, otherwise by remote IP. rps <= 0 disables it.
func RateLimitMiddleware(rps float64, burst int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rps <= 0 {
			return next
		}
		if burst < 1 {
			burst = 1
		}
		visitors := gocache.New(visitorIdle, visitorCleanup)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			id := clientID(r)
			var lim *rate.Limiter
			if v, ok := visitors.Get(id); ok {
				lim = v.(*rate.Limiter)
			} else {
				lim = rate.NewLimiter(rate.Limit(rps), burst)
				// Add loses to a concurrent first request; use the winner.
				if err := visitors.Add(id, lim, gocache.DefaultExpiration); err != nil {
					if v, ok := visitors.Get(id); ok {
						lim = v.(*rate.Limiter)
					}
				}
			}
			visitors.SetDefault(id, lim)

			if !lim.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientID(r *http.Request) string {
	if key, ok := requestKey(r); ok && key != "" {
		return "key:" + key
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}
