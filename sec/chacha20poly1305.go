// Package sec seals stored draft values at rest.
package sec

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealedPrefix marks values written by a ValueCipher.
// Values without it are passed through by Open so that stores created
// before a key was configured stay readable.
const SealedPrefix = "xc1:"

var ErrCiphertextTooShort = errors.New("sec: ciphertext too short")

// ValueCipher is XChaCha20-Poly1305 over string values, base64url encoded.
// The storage key is bound as associated data, so a sealed value moved to
// another key fails to open.
type ValueCipher struct {
	aead cipher.AEAD
}

func NewValueCipher(key []byte) (*ValueCipher, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sec: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &ValueCipher{aead: aead}, nil
}

// NewValueCipherBase64 takes the key as standard base64 text (config files)
func NewValueCipherBase64(encodedKey string) (*ValueCipher, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encodedKey))
	if err != nil {
		return nil, fmt.Errorf("sec: decode key: %w", err)
	}
	return NewValueCipher(key)
}

func (c *ValueCipher) Seal(storageKey, plaintext string) (string, error) {
	// random nonce every time, leave capacity for the ciphertext
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), []byte(storageKey))
	return SealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *ValueCipher) Open(storageKey, stored string) (string, error) {
	encoded, ok := strings.CutPrefix(stored, SealedPrefix)
	if !ok {
		return stored, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("sec: decode: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrCiphertextTooShort
	}
	plain, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(storageKey))
	if err != nil {
		return "", fmt.Errorf("sec: open %q: %w", storageKey, err)
	}
	return string(plain), nil
}
