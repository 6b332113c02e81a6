package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

const secretBytes = 32

// newOpaqueSecret generates a refresh secret. Only the SHA-256 hex of
// the raw value is ever persisted; with 256 bits of entropy no pepper
// or KDF is needed for lookup hashing.
func newOpaqueSecret() (raw string, hash string, err error) {
	buf := make([]byte, secretBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, hashSecret(raw), nil
}

func hashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
