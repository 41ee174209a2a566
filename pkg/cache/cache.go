// Package cache provides response caching for LLM clients so identical
// requests do not pay for a second provider round trip.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Cache stores serialized responses keyed by request fingerprint.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// Fingerprint derives a stable cache key from request-identifying parts.
// Parts are length-prefix separated so ("ab","c") and ("a","bc") differ.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte{byte(len(p) >> 24), byte(len(p) >> 16), byte(len(p) >> 8), byte(len(p))})
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
