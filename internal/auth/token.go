package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// TokenPrefix marks every bearer token minted by this server so tokens are
// recognizable in logs and API responses without decoding them.
const TokenPrefix = "nwt_"

// GenerateBearerToken returns a fresh bearer token with 256 bits of
// crypto/rand entropy, well above the spec's 128-bit floor.
func GenerateBearerToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating bearer token: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(raw), nil
}

// HashToken returns the SHA-256 hex digest of a bearer token. Only the
// hash is ever persisted; the raw token is returned to the agent once, at
// enrollment time, and never again.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ConstantTimeEqual compares two secrets without leaking timing
// information about where they first differ. Used for the admin token,
// which (unlike bearer tokens) is compared directly rather than by hash
// lookup and so needs its own constant-time guard.
func ConstantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		// Still run a comparison against a same-length dummy so the
		// early return above doesn't leak length through a fast path on
		// the *hot* equal-length case; the dummy only costs a few cycles.
		dummy := make([]byte, len(a))
		subtle.ConstantTimeCompare([]byte(a), dummy)
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
