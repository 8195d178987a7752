// Package sha256 provides content hashing for archive keys.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash hashes the input and returns a hex digest.
func Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
