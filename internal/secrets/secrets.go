// Package secrets stores vendor credentials sealed with AES-256-GCM. Callers
// hold only secret IDs; plaintext is produced on demand for a vendor call.
package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

var ErrNotFound = errors.New("secret not found")

type Vault interface {
	Put(ctx context.Context, userID int64, name, value string) (string, error)
	Get(ctx context.Context, id string) (string, error)
	Delete(ctx context.Context, ids ...string) error
}

// Encryptor handles AES-256-GCM encryption/decryption
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates a new encryptor with a 32-byte key
func NewEncryptor(key string) (*Encryptor, error) {
	if len(key) != 32 {
		return nil, errors.New("encryption key must be exactly 32 bytes for AES-256")
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Encryptor{aead: gcm}, nil
}

// Seal encrypts plaintext and prepends the random nonce.
func (e *Encryptor) Seal(plaintext string) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return e.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (e *Encryptor) Open(ciphertext []byte) (string, error) {
	n := e.aead.NonceSize()
	if len(ciphertext) < n {
		return "", errors.New("ciphertext too short")
	}
	plaintext, err := e.aead.Open(nil, ciphertext[:n], ciphertext[n:], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
