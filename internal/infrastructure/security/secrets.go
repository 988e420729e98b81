// Package security provides secret hashing utilities
package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashSecret hashes a per-environment secret key for storage in the
// registry.
func HashSecret(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashed), nil
}

// VerifySecret compares a presented secret against its stored hash.
func VerifySecret(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
