// ABOUTME: Static API key set with constant-time verification
// ABOUTME: Keys are compared by SHA-256 digest so length does not leak through timing

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrNoKeys is returned when a KeySet would accept nothing.
var ErrNoKeys = errors.New("at least one API key is required")

// KeySet holds the accepted API keys.
type KeySet struct {
	digests [][sha256.Size]byte
}

// NewKeySet builds a KeySet. Blank keys are ignored; duplicates collapse.
func NewKeySet(keys []string) (*KeySet, error) {
	seen := make(map[[sha256.Size]byte]struct{}, len(keys))
	ks := &KeySet{}
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		d := sha256.Sum256([]byte(key))
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		ks.digests = append(ks.digests, d)
	}
	if len(ks.digests) == 0 {
		return nil, ErrNoKeys
	}
	return ks, nil
}

// Verify reports whether key exactly matches a configured key.
// Every configured key is compared so the result does not depend on position.
func (ks *KeySet) Verify(key string) bool {
	if key == "" {
		return false
	}
	d := sha256.Sum256([]byte(key))
	match := 0
	for i := range ks.digests {
		match |= subtle.ConstantTimeCompare(d[:], ks.digests[i][:])
	}
	return match == 1
}

// Len returns the number of distinct keys.
func (ks *KeySet) Len() int {
	return len(ks.digests)
}

// Fingerprint returns a short, log-safe identifier for key.
func Fingerprint(key string) string {
	d := sha256.Sum256([]byte(key))
	return hex.EncodeToString(d[:4])
}
