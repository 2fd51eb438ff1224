// Package cipher provides authenticated symmetric encryption for vault
// secret records: a 32-byte key, a fresh 12-byte nonce per call, and a
// detached authentication tag, matching the AEAD contract
// golang.org/x/crypto/chacha20poly1305 implements.
package cipher

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/VouchlyAI/Pincer-MCP/internal/gwerrors"
)

const (
	KeySize   = chacha20poly1305.KeySize
	NonceSize = chacha20poly1305.NonceSize
)

// Sealed is the (ciphertext, nonce, tag) triple a Secret Record stores.
// The authentication tag is split out into its own field so callers
// (and the store schema) can keep the three columns distinct, even
// though chacha20poly1305.Seal appends the tag to its output
// internally.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// Encrypt seals plaintext under key with a freshly drawn random nonce.
func Encrypt(key, plaintext []byte) (Sealed, error) {
	if len(key) != KeySize {
		return Sealed{}, gwerrors.New(gwerrors.KindAuthFailure, "cipher key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return Sealed{}, gwerrors.Wrap(gwerrors.KindAuthFailure, err, "constructing AEAD failed")
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Sealed{}, gwerrors.Wrap(gwerrors.KindAuthFailure, err, "drawing nonce failed")
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	tagStart := len(sealed) - aead.Overhead()
	return Sealed{
		Ciphertext: append([]byte(nil), sealed[:tagStart]...),
		Nonce:      nonce,
		Tag:        append([]byte(nil), sealed[tagStart:]...),
	}, nil
}

// Decrypt opens a Sealed triple under key. Any mismatch — wrong key,
// flipped tag bit, truncated ciphertext — yields ErrAuthFailure.
func Decrypt(key []byte, s Sealed) ([]byte, error) {
	if len(key) != KeySize {
		return nil, gwerrors.New(gwerrors.KindAuthFailure, "cipher key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindAuthFailure, err, "constructing AEAD failed")
	}
	if len(s.Nonce) != NonceSize {
		return nil, gwerrors.New(gwerrors.KindAuthFailure, "nonce must be %d bytes, got %d", NonceSize, len(s.Nonce))
	}
	combined := make([]byte, 0, len(s.Ciphertext)+len(s.Tag))
	combined = append(combined, s.Ciphertext...)
	combined = append(combined, s.Tag...)
	plaintext, err := aead.Open(nil, s.Nonce, combined, nil)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindAuthFailure, err, "decryption failed")
	}
	return plaintext, nil
}

// GenerateKey draws a fresh 32-byte master key from a cryptographically
// strong random source.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindKeychainIO, err, "generating master key failed")
	}
	return key, nil
}
