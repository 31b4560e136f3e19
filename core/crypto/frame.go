package crypto

import (
	"crypto/ed25519"
	"errors"

	"github.com/kabili207/prisma-go/core/codec"
)

// ErrBadSignature is returned by VerifyFrame when the signature does not match.
var ErrBadSignature = errors.New("frame signature mismatch")

// SignFrame sets the frame's Sender to the key pair's public key and signs
// the header and payload.
func SignFrame(kp *KeyPair, f *codec.Frame) {
	f.Sender = kp.ID()
	copy(f.Signature[:], ed25519.Sign(kp.PrivateKey, f.SignedBytes()))
}

// VerifyFrame checks the sender key and the Ed25519 signature of a frame.
func VerifyFrame(f *codec.Frame) error {
	if err := ValidatePublicKey(f.Sender[:]); err != nil {
		return err
	}
	if !ed25519.Verify(f.Sender[:], f.SignedBytes(), f.Signature[:]) {
		return ErrBadSignature
	}
	return nil
}
