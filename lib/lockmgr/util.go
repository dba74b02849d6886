package lockmgr

import (
	"crypto/rand"
)

// ownerIDLength is the owner id size in bytes (256 bit)
const ownerIDLength = 32

// generateOwnerID creates a new random owner ID
func generateOwnerID() ([]byte, error) {
	randomBytes := make([]byte, ownerIDLength)
	_, err := rand.Read(randomBytes)
	return randomBytes, err
}
