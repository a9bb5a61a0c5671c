// ABOUTME: HTTP middleware for X-API-Key authentication on API endpoints
// ABOUTME: Validates the key against the configured set and adds the owner to context

package auth

import (
	"log/slog"
	"net/http"
)

// HeaderAPIKey carries the caller's API key.
const HeaderAPIKey = "X-API-Key"

// APIKeyMiddleware rejects requests without a valid X-API-Key with 401.
// Accepted requests carry an AuthContext whose Owner is the key itself.
func APIKeyMiddleware(keys *KeySet, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderAPIKey)
			if key == "" {
				writeUnauthorized(w, "missing API key")
				return
			}

			if !keys.Verify(key) {
				logger.Warn("rejected API key",
					"fingerprint", Fingerprint(key),
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr)
				writeUnauthorized(w, "invalid API key")
				return
			}

			authCtx := &AuthContext{Owner: key, Fingerprint: Fingerprint(key)}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
