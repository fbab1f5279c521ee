package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/assafrot/api-keys-app/src/models"
)

// keyEntropyBytes is the number of random bytes behind every issued key
const keyEntropyBytes = 32

// GenerateAPIKey returns "rot-" followed by 64 hex characters from crypto/rand.
// Uniqueness is left to the store's unique constraint.
func GenerateAPIKey() (string, error) {
	b := make([]byte, keyEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}
	return models.KeyPrefix + hex.EncodeToString(b), nil
}
