// Package auth holds the credential primitives: session tokens, password
// hashes and the TOTP second factor.
package auth

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
)

// NewSessionToken returns a fresh raw token and the hash that is stored.
// Only the hash ever reaches the database.
func NewSessionToken() (raw, hash string) {
	raw = uuid.NewString()
	return raw, HashToken(raw)
}

func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
