// Package secrets handles encryption of stored controller credentials.
//
// Cloud-account credentials are encrypted at rest with AES-256-GCM and a
// site-wide key from configuration. The engine only ever needs the
// decrypt direction at runtime; Encrypt exists for provisioning paths
// and tests. Callers treat decryption failure as a controller-level
// fault, never a fatal one.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// Sentinel errors for credential handling.
var (
	// ErrInvalidKey is returned when the key is not 32 bytes.
	ErrInvalidKey = errors.New("secrets: key must be 32 bytes")

	// ErrDecryptFailed is returned when a ciphertext cannot be decrypted.
	// This usually means the wrong key, or corrupted stored credentials.
	ErrDecryptFailed = errors.New("secrets: decrypt failed")
)

// Decryptor decrypts stored credential ciphertexts.
// The poll scheduler depends on this interface so tests can substitute
// a fake that returns fixed plaintexts.
type Decryptor interface {
	Decrypt(ciphertext string) ([]byte, error)
}

// Vault implements AES-256-GCM encryption of credential blobs.
// Ciphertexts are base64(nonce || sealed) strings suitable for TEXT columns.
type Vault struct {
	aead cipher.AEAD
}

// NewVault creates a Vault from a 32-byte key.
func NewVault(key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext credentials for storage.
func (v *Vault) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a stored ciphertext.
//
// Returns ErrDecryptFailed (wrapped) for malformed or unopenable input,
// so callers can classify it with errors.Is without inspecting strings.
func (v *Vault) Decrypt(ciphertext string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding base64: %w", ErrDecryptFailed, err)
	}

	nonceSize := v.aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryptFailed)
	}

	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptFailed, err)
	}

	return plaintext, nil
}
