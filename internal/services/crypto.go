package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	ErrTokenEncryptionFailed = errors.New("token encryption failed")
	ErrTokenDecryptionFailed = errors.New("token decryption failed")
)

// TokenCipher encrypts downstream tokens and connection secrets at rest
// with AES-256-GCM
type TokenCipher struct {
	key []byte
}

// NewTokenCipher creates a TokenCipher from a 32-byte key
func NewTokenCipher(key string) (*TokenCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return &TokenCipher{key: []byte(key)}, nil
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext)
func (tc *TokenCipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(tc.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenEncryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenEncryptionFailed, err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenEncryptionFailed, err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt
func (tc *TokenCipher) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenDecryptionFailed, err)
	}

	block, err := aes.NewCipher(tc.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenDecryptionFailed, err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenDecryptionFailed, err)
	}

	if len(sealed) < gcm.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrTokenDecryptionFailed)
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenDecryptionFailed, err)
	}

	return string(plaintext), nil
}
