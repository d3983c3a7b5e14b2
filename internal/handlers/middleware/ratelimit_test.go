package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/vidtube/internal/ratelimit"
)

type limiterFunc func(ctx context.Context, key string) (ratelimit.Decision, error)

func (f limiterFunc) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	return f(ctx, key)
}

type warnLoggerFunc func(string, ...any)

func (f warnLoggerFunc) Warn(msg string, v ...any) { f(msg, v...) }

func TestRateLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	noLog := warnLoggerFunc(func(string, ...any) {})

	serve := func(lim limiterFunc) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		RateLimitMiddleware("login", lim, noLog)(next).ServeHTTP(rec, req)
		return rec
	}

	t.Run("allowed", func(t *testing.T) {
		var key string
		rec := serve(func(ctx context.Context, k string) (ratelimit.Decision, error) {
			key = k
			return ratelimit.Decision{Allowed: true, Limit: 10, Remaining: 9}, nil
		})

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "login:10.0.0.1", key, "keyed by client ip")
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("denied", func(t *testing.T) {
		rec := serve(func(ctx context.Context, k string) (ratelimit.Decision, error) {
			return ratelimit.Decision{Allowed: false, Limit: 10, RetryAfter: 1500 * time.Millisecond}, nil
		})

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("Retry-After"))
		assert.JSONEq(t, `{"statusCode":429,"data":null,"message":"Too many requests, try again later","success":false}`, rec.Body.String())
	})

	t.Run("limiter failure lets request through", func(t *testing.T) {
		rec := serve(func(ctx context.Context, k string) (ratelimit.Decision, error) {
			return ratelimit.Decision{}, errors.New("redis down")
		})

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("forwarded header from untrusted peer does not change the key", func(t *testing.T) {
		hits := map[string]int{}
		lim := limiterFunc(func(ctx context.Context, k string) (ratelimit.Decision, error) {
			hits[k]++
			return ratelimit.Decision{Allowed: hits[k] <= 2, Limit: 2, RetryAfter: time.Minute}, nil
		})
		handler := chain(
			ClientIPMiddleware(NewIPExtractor(nil)),
			RateLimitMiddleware("login", lim, noLog),
		)(next)

		blocked := 0
		for i := range 10 {
			req := httptest.NewRequest(http.MethodPost, "/login", nil)
			req.RemoteAddr = "203.0.113.7:5555"
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code == http.StatusTooManyRequests {
				blocked++
			}
		}

		assert.Equal(t, map[string]int{"login:203.0.113.7": 10}, hits, "all attempts counted against the peer")
		assert.Equal(t, 8, blocked)
	})

	t.Run("trusted proxy forwards client address", func(t *testing.T) {
		var keys []string
		lim := limiterFunc(func(ctx context.Context, k string) (ratelimit.Decision, error) {
			keys = append(keys, k)
			return ratelimit.Decision{Allowed: true, Limit: 2, Remaining: 1}, nil
		})
		trusted, err := ParseTrustedProxies("10.0.0.0/8")
		require.NoError(t, err)
		handler := chain(
			ClientIPMiddleware(NewIPExtractor(trusted)),
			RateLimitMiddleware("login", lim, noLog),
		)(next)

		for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
			req := httptest.NewRequest(http.MethodPost, "/login", nil)
			req.RemoteAddr = "10.0.0.2:5555"
			req.Header.Set("X-Forwarded-For", client)
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}

		assert.Equal(t, []string{"login:198.51.100.1", "login:198.51.100.2"}, keys)
	})
}

// chain wraps handler so the first middleware runs first
func chain(mds ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		for i := len(mds) - 1; i >= 0; i-- {
			h = mds[i](h)
		}
		return h
	}
}
