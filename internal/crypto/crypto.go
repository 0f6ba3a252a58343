// Package crypto gives the configuration surface's encryptionKey field a
// concrete effect: when set, row content is sealed at rest with
// ChaCha20-Poly1305 and opened transparently on read. It never touches
// embeddings, tags, or metadata.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrNoKey reports that no encryption key has been configured. Seal and
// Open do not return it: without a key they pass data through unchanged.
var ErrNoKey = errors.New("crypto: no encryption key configured")

// Sealer seals and opens row content with a key derived from the
// configured encryptionKey. A zero-value Sealer (empty key) is a no-op
// passthrough.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives a 256-bit key from the caller-supplied secret via
// SHA-256 and constructs a ChaCha20-Poly1305 AEAD. An empty key yields a
// Sealer whose Seal/Open are passthroughs.
func NewSealer(key string) (*Sealer, error) {
	if key == "" {
		return &Sealer{}, nil
	}
	sum := sha256.Sum256([]byte(key))
	aead, err := chacha20poly1305.New(sum[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: construct aead: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Enabled reports whether this Sealer actually encrypts.
func (s *Sealer) Enabled() bool { return s.aead != nil }

// Seal encrypts plaintext, prefixing the result with a random nonce. If
// no key is configured, it returns plaintext unchanged.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	if s.aead == nil {
		return plaintext, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data previously produced by Seal. If no key is
// configured, it returns data unchanged.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	if s.aead == nil {
		return data, nil
	}
	n := s.aead.NonceSize()
	if len(data) < n {
		return nil, errors.New("crypto: ciphertext too short")
	}
	nonce, ciphertext := data[:n], data[n:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: open: %w", err)
	}
	return plaintext, nil
}
