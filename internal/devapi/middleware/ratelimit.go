package middleware

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit limits requests per client IP. A non-positive limit disables it.
func RateLimit(requests int, window time.Duration) func(http.Handler) http.Handler {
	if requests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("[DevAPI] Rate limit exceeded: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			RespondError(w, http.StatusTooManyRequests, "Too many attempts. Please try again later")
		}),
	)
}
