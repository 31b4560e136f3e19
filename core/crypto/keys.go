// Package crypto provides the key handling for shell and terminal frames:
// Ed25519 key pairs and frame signatures, X25519 shared secrets derived from
// those keys, and sealing of private post content with the shared secret.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

var (
	ErrInvalidPubKeySize  = errors.New("invalid public key size: expected 32 bytes")
	ErrInvalidPrivKeySize = errors.New("invalid private key size: expected 64 bytes")
	ErrInvalidSeedSize    = errors.New("invalid seed size: expected 32 bytes")
	ErrInvalidPubKey      = errors.New("invalid public key")
	ErrSmallOrderPubKey   = errors.New("public key has small order")
)

// KeyPair holds an Ed25519 key pair identifying a shell or a terminal.
type KeyPair struct {
	PublicKey  ed25519.PublicKey  // 32 bytes
	PrivateKey ed25519.PrivateKey // 64 bytes
}

// GenerateKeyPair generates a new Ed25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}
	return &KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// KeyPairFromSeed derives a key pair from a 32-byte seed.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidSeedSize
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{PublicKey: priv.Public().(ed25519.PublicKey), PrivateKey: priv}, nil
}

// KeyPairFromHexSeed parses a hex-encoded 32-byte seed, as stored in the
// configuration file.
func KeyPairFromHexSeed(s string) (*KeyPair, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding seed: %w", err)
	}
	return KeyPairFromSeed(seed)
}

// ID returns the public key as a fixed-size array, the form carried in frames.
func (kp *KeyPair) ID() [32]byte {
	var id [32]byte
	copy(id[:], kp.PublicKey)
	return id
}

// Fingerprint returns the first 8 bytes of the public key in hex.
func (kp *KeyPair) Fingerprint() string {
	return hex.EncodeToString(kp.PublicKey[:8])
}

// ValidatePublicKey checks that key is a canonical encoding of an Edwards
// point outside the small-order subgroup.
func ValidatePublicKey(key []byte) error {
	if len(key) != ed25519.PublicKeySize {
		return ErrInvalidPubKeySize
	}
	p, err := new(edwards25519.Point).SetBytes(key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPubKey, err)
	}
	if new(edwards25519.Point).MultByCofactor(p).Equal(edwards25519.NewIdentityPoint()) == 1 {
		return ErrSmallOrderPubKey
	}
	return nil
}

// Ed25519PubKeyToX25519 converts an Ed25519 public key to its X25519
// (Montgomery) form.
func Ed25519PubKeyToX25519(edPubKey []byte) ([]byte, error) {
	point, err := new(edwards25519.Point).SetBytes(edPubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPubKey, err)
	}
	return point.BytesMontgomery(), nil
}

// Ed25519PrivKeyToX25519 converts an Ed25519 private key to its X25519 scalar
// (RFC 8032: SHA-512 of the seed, first 32 bytes, clamped).
func Ed25519PrivKeyToX25519(edPrivKey ed25519.PrivateKey) ([]byte, error) {
	if len(edPrivKey) != ed25519.PrivateKeySize {
		return nil, ErrInvalidPrivKeySize
	}
	h := sha512.Sum512(edPrivKey.Seed())
	h[0] &= 248
	h[31] &= 127
	h[31] |= 64
	return h[:32], nil
}

// ComputeSharedSecret derives the 32-byte X25519 secret between a local
// Ed25519 private key and a remote Ed25519 public key. Both sides of a pair
// derive the same value.
func ComputeSharedSecret(localPrivKey ed25519.PrivateKey, remotePubKey []byte) ([]byte, error) {
	if len(remotePubKey) != ed25519.PublicKeySize {
		return nil, ErrInvalidPubKeySize
	}
	priv, err := Ed25519PrivKeyToX25519(localPrivKey)
	if err != nil {
		return nil, fmt.Errorf("converting private key: %w", err)
	}
	pub, err := Ed25519PubKeyToX25519(remotePubKey)
	if err != nil {
		return nil, fmt.Errorf("converting public key: %w", err)
	}
	secret, err := curve25519.X25519(priv, pub)
	if err != nil {
		return nil, fmt.Errorf("x25519: %w", err)
	}
	return secret, nil
}
