package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// ConstantTimeEqual performs a constant-time comparison of two strings. Use it
// for refresh tokens, session tokens, backup codes, and any other secret
// comparison where response-time could leak information about a correct guess.
func ConstantTimeEqual(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

// ConstantTimeEqualBytes is the byte-slice equivalent of ConstantTimeEqual.
func ConstantTimeEqualBytes(provided, expected []byte) bool {
	return subtle.ConstantTimeCompare(provided, expected) == 1
}

// HashToken produces a deterministic SHA-256 lookup key for an opaque token, so
// the raw token value is never stored at rest.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// HashBackupCode normalizes (trims surrounding space, upper-cases) and hashes
// a backup code for at-rest storage.
func HashBackupCode(code string) string {
	return HashToken(strings.ToUpper(strings.TrimSpace(code)))
}
