package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// VerificationHash produces salted one-way hashes for verifying a secret
// without storing or decrypting it. The salt is embedded in the encoded
// output, so Verify is self-contained.
type VerificationHash struct {
	Iterations int
	SaltSize   int
}

// NewVerificationHash returns a hasher with the default work factor.
func NewVerificationHash() *VerificationHash {
	return &VerificationHash{
		Iterations: 100_000,
		SaltSize:   16,
	}
}

// Hash derives a PBKDF2-SHA256 digest under a fresh random salt and
// returns base64(salt || digest).
func (h *VerificationHash) Hash(secret string) (string, error) {
	salt := make([]byte, h.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	digest := pbkdf2.Key([]byte(secret), salt, h.Iterations, sha256.Size, sha256.New)
	return base64.StdEncoding.EncodeToString(append(salt, digest...)), nil
}

// Verify reports whether secret matches the encoded hash. The digest
// comparison is constant time.
func (h *VerificationHash) Verify(secret, encoded string) bool {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) <= h.SaltSize {
		return false
	}

	salt, digest := raw[:h.SaltSize], raw[h.SaltSize:]
	candidate := pbkdf2.Key([]byte(secret), salt, h.Iterations, len(digest), sha256.New)
	return subtle.ConstantTimeCompare(candidate, digest) == 1
}
