// ABOUTME: Opt-in access log middleware for the gateway's HTTP routes
// ABOUTME: One slog line per request with method, path, status, duration and key fingerprint

package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/minecraft-ai/internal/auth"
)

// requestInfo is filled in by inner handlers while a request is served.
type requestInfo struct {
	key string
}

type requestInfoKey struct{}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// logRequests logs every request after it completes. 5xx responses log at
// Error, 4xx at Warn, the rest at Info.
func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		info := &requestInfo{}
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)))

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", rec.bytes,
			"duration", time.Since(start),
		}
		if info.key != "" {
			attrs = append(attrs, "key", info.key)
		}
		logger.Log(r.Context(), level, "http request", attrs...)
	})
}

// noteKey records the authenticated key's fingerprint for the access log.
// It runs after the API key middleware.
func noteKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info, ok := r.Context().Value(requestInfoKey{}).(*requestInfo); ok {
			info.key = auth.FingerprintFromContext(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}
