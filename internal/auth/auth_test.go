// ABOUTME: Tests for API key verification, context helpers, and HTTP middleware
// ABOUTME: Covers missing/invalid keys, exact matching, and owner propagation

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKeySet(t *testing.T) {
	_, err := NewKeySet(nil)
	assert.ErrorIs(t, err, ErrNoKeys)

	_, err = NewKeySet([]string{"", "   "})
	assert.ErrorIs(t, err, ErrNoKeys)

	ks, err := NewKeySet([]string{"a", "b", "a", ""})
	require.NoError(t, err)
	assert.Equal(t, 2, ks.Len())
}

func TestKeySet_VerifyIsExact(t *testing.T) {
	ks, err := NewKeySet([]string{"secret-one", "secret-two"})
	require.NoError(t, err)

	assert.True(t, ks.Verify("secret-one"))
	assert.True(t, ks.Verify("secret-two"))

	for _, key := range []string{"", "secret", "secret-one ", " secret-one", "SECRET-ONE", "secret-three"} {
		assert.False(t, ks.Verify(key), "key %q", key)
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("secret-one")
	assert.Len(t, fp, 8)
	assert.Equal(t, fp, Fingerprint("secret-one"))
	assert.NotEqual(t, fp, Fingerprint("secret-two"))
	assert.NotContains(t, fp, "secret")
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, FromContext(ctx))
	assert.Empty(t, OwnerFromContext(ctx))
	assert.Empty(t, FingerprintFromContext(ctx))

	ctx = WithAuth(ctx, &AuthContext{Owner: "k", Fingerprint: Fingerprint("k")})
	assert.Equal(t, "k", FromContext(ctx).Owner)
	assert.Equal(t, "k", OwnerFromContext(ctx))
	assert.Equal(t, Fingerprint("k"), FingerprintFromContext(ctx))
}

func TestAPIKeyMiddleware(t *testing.T) {
	ks, err := NewKeySet([]string{"valid-key"})
	require.NoError(t, err)

	var gotOwner string
	var called bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotOwner = OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	mw := APIKeyMiddleware(ks, nil)(handler)

	tests := []struct {
		name       string
		key        string
		wantStatus int
		wantBody   string
	}{
		{"valid", "valid-key", http.StatusOK, ""},
		{"missing", "", http.StatusUnauthorized, `{"error":"missing API key"}`},
		{"invalid", "wrong-key", http.StatusUnauthorized, `{"error":"invalid API key"}`},
		{"case differs", "VALID-KEY", http.StatusUnauthorized, `{"error":"invalid API key"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called, gotOwner = false, ""
			req := httptest.NewRequest(http.MethodGet, "/chats", nil)
			if tt.key != "" {
				req.Header.Set(HeaderAPIKey, tt.key)
			}
			rec := httptest.NewRecorder()

			mw.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.True(t, called)
				assert.Equal(t, tt.key, gotOwner)
				return
			}
			assert.False(t, called, "handler must not run")
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}
