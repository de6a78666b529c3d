package state

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// IDLength is the full length of a run ID in hex characters.
const IDLength = 32

// ShortIDLength is the display length of a run ID.
const ShortIDLength = 12

// GenerateID generates a new 32-character hex ID from a random UUID.
func GenerateID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate ID: %w", err)
	}
	return hex.EncodeToString(u[:]), nil
}

// ShortID returns the first 12 characters of an ID for display.
func ShortID(id string) string {
	if len(id) < ShortIDLength {
		return id
	}
	return id[:ShortIDLength]
}
