// Package auth provides API key authentication for the chat API.
//
// Callers send a static key in the X-API-Key header. The key is checked
// against the configured KeySet with constant-time comparison and, when
// accepted, becomes the Owner of everything the request creates or reads.
// Two requests share data only if they present byte-identical keys.
//
// Keys never appear in logs; Fingerprint gives a short SHA-256 prefix instead.
//
//	keys, err := auth.NewKeySet(cfg.Auth.APIKeys)
//	mux.Handle("/chats", auth.APIKeyMiddleware(keys, logger)(handler))
//
//	owner := auth.OwnerFromContext(r.Context())
package auth
