// Package oauth connects user accounts to AI providers with the
// authorization-code + PKCE flow and keeps the granted tokens encrypted
// at rest.
package oauth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Cipher seals tokens with AES-GCM before they reach the database. A
// nil key yields the identity cipher for development setups; callers
// log that condition at init.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a cipher from a raw 32-byte AES key. An empty key
// returns the identity cipher.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) == 0 {
		return &Cipher{}, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Enabled reports whether tokens are actually encrypted.
func (c *Cipher) Enabled() bool { return c.aead != nil }

// Encrypt seals the plaintext under a fresh nonce and returns
// base64(nonce || ciphertext). Identity mode returns the input as is.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if c.aead == nil || plaintext == "" {
		return plaintext, nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Identity mode returns the input as is.
func (c *Cipher) Decrypt(encoded string) (string, error) {
	if c.aead == nil || encoded == "" {
		return encoded, nil
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("token ciphertext too short")
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt token: %w", err)
	}
	return string(plaintext), nil
}
