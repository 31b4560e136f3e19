package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrSealedTooShort is returned by Open for data shorter than nonce + tag.
var ErrSealedTooShort = errors.New("sealed data too short")

// Seal encrypts plaintext with XChaCha20-Poly1305 under a 32-byte shared
// secret. Output: [nonce(24) || ciphertext || tag(16)]. ad is authenticated
// but not encrypted; the shell passes the item id so sealed content cannot be
// moved between items.
func Seal(secret, plaintext, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(secret)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, ad), nil
}

// Open reverses Seal.
func Open(secret, sealed, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(secret)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSealedTooShort
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, fmt.Errorf("opening sealed content: %w", err)
	}
	return plaintext, nil
}
