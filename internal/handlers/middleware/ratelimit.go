package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/nkiryanov/vidtube/internal/handlers/render"
	"github.com/nkiryanov/vidtube/internal/ratelimit"
)

type limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

type warnLogger interface {
	Warn(msg string, args ...any)
}

// Limit attempts per client ip. Requests pass if the limiter is unavailable
func RateLimitMiddleware(name string, lim limiter, l warnLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			d, err := lim.Allow(r.Context(), name+":"+ip)
			if err != nil {
				l.Warn("Rate limiter unavailable", "limiter", name, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				retry := int(math.Ceil(d.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				l.Warn("Rate limit exceeded", "limiter", name, "ip", ip)
				render.Error(w, "Too many requests, try again later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
