// Package crypto provides the primitives the broker relies on: envelope
// encryption for secrets at rest, a salted verification hash for API
// keys, and HMAC signing for the validation webhook.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

// NonceSize is the AES-GCM nonce length prefixed to every ciphertext.
const NonceSize = 12

// ErrDecryption is returned on any authentication or decoding failure.
// Decryption never yields partial plaintext. Callers treat this as a
// configuration-level failure (wrong key or corrupted ciphertext).
var ErrDecryption = errors.New("decryption failed")

// EnvelopeCipher provides authenticated encryption using AES-GCM. The
// key is fixed for process lifetime and must be 16, 24, or 32 bytes.
type EnvelopeCipher struct {
	aead cipher.AEAD
}

// NewEnvelopeCipher constructs a cipher from raw key material.
func NewEnvelopeCipher(key []byte) (*EnvelopeCipher, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("encryption key must be 16, 24, or 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AES: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	return &EnvelopeCipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. The nonce is
// prefixed to the returned ciphertext so each output is self-describing.
func (c *EnvelopeCipher) Encrypt(plaintext, associatedData []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return c.aead.Seal(nonce, nonce, plaintext, associatedData), nil
}

// Decrypt opens a nonce-prefixed ciphertext. Tampering, truncation, and
// wrong-key inputs all fail closed with ErrDecryption.
func (c *EnvelopeCipher) Decrypt(payload, associatedData []byte) ([]byte, error) {
	if len(payload) < NonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryption)
	}

	nonce, ciphertext := payload[:NonceSize], payload[NonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plaintext, nil
}
