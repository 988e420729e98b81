// Package security provides id generation, credential hashing and
// environment token handling.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// GenerateULID returns a new lexically sortable id. Sessions, events and
// answers all use these, so rows sort by creation time.
func GenerateULID() string {
	return ulid.Make().String()
}

// GenerateSecureToken returns a URL-safe random token of length random
// bytes. Environment secrets are minted with this; only their bcrypt hash
// is stored.
func GenerateSecureToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("secure token generation failed: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// GenerateSecureKey returns a random hex key of the given character length,
// used for per-environment JWT signing secrets.
func GenerateSecureKey(length int) (string, error) {
	buf := make([]byte, length/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("secure key generation failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
