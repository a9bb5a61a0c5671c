// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating the owner key via context

package auth

import (
	"context"
)

// AuthContext holds the authenticated identity extracted from a request.
type AuthContext struct {
	Owner       string // the API key; owns every conversation it creates
	Fingerprint string // log-safe form of Owner
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	auth, ok := ctx.Value(authContextKey{}).(*AuthContext)
	if !ok {
		return nil
	}
	return auth
}

// FingerprintFromContext returns the log-safe form of the owner, or "".
func FingerprintFromContext(ctx context.Context) string {
	if auth := FromContext(ctx); auth != nil {
		return auth.Fingerprint
	}
	return ""
}

// OwnerFromContext returns the authenticated owner or "".
func OwnerFromContext(ctx context.Context) string {
	if auth := FromContext(ctx); auth != nil {
		return auth.Owner
	}
	return ""
}
