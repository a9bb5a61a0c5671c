// ABOUTME: HTTP middleware that applies the Limiter to authenticated requests
// ABOUTME: Rejects over-budget callers with 429 and a Retry-After header

package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

// KeyFunc extracts the rate limit key from a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// Middleware limits requests per key. It must run after authentication so
// that keyOf sees the verified identity.
func Middleware(l *Limiter, keyOf KeyFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyOf(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			d := l.Allow(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				retry := int(math.Ceil(d.RetryAfter.Seconds()))
				if retry < 1 {
					retry = 1
				}
				logger.Info("rate limit exceeded", "path", r.URL.Path, "retry_after_s", retry)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = fmt.Fprintf(w, `{"error":"rate limit exceeded: %s"}`, Describe(l.Limit(), l.Period()))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Describe formats a budget as "10 requests per 60 seconds". Periods that are
// not whole seconds fall back to time.Duration formatting.
func Describe(limit int, period time.Duration) string {
	if period > 0 && period%time.Second == 0 {
		return fmt.Sprintf("%d requests per %d seconds", limit, int64(period/time.Second))
	}
	return fmt.Sprintf("%d requests per %s", limit, period)
}
