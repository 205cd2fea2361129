package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashAPIKey produces the stable digest used for cache and limiter keys.
// The raw key never leaves the request handler.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
