// Package codec implements the binary wire format used between the shell and
// remote terminals: signed frames, the snapshot payload, and the serial
// framing with a Fletcher-16 checksum.
//
// All multi-byte integers inside a frame are little-endian. The serial frame
// header and checksum are big-endian.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// PubKeySize is the size of an Ed25519 public key.
	PubKeySize = 32
	// SignatureSize is the size of an Ed25519 signature.
	SignatureSize = 64

	// FrameHeaderSize is type(1) + timestamp(8) + sender(32) + payload length(2).
	FrameHeaderSize = 1 + 8 + PubKeySize + 2
	// FrameOverhead is the size of a frame with an empty payload.
	FrameOverhead = FrameHeaderSize + SignatureSize
	// MaxFramePayload is the largest payload a frame can carry.
	MaxFramePayload = 4096
)

// FrameType identifies what a frame's payload holds.
type FrameType uint8

const (
	// FrameAnnounce advertises a shell. Payload: the shell's display name.
	FrameAnnounce FrameType = iota
	// FrameCommand carries one command line from a terminal to the shell.
	FrameCommand
	// FrameReply carries the shell's text reply to a command.
	FrameReply
	// FrameSnapshot carries an encoded Snapshot of the session's view.
	FrameSnapshot
)

func (t FrameType) String() string {
	switch t {
	case FrameAnnounce:
		return "announce"
	case FrameCommand:
		return "command"
	case FrameReply:
		return "reply"
	case FrameSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

var (
	ErrFrameTooShort     = errors.New("frame too short")
	ErrFramePayloadLarge = errors.New("frame payload exceeds maximum size")
	ErrFrameLength       = errors.New("frame length mismatch")
	ErrUnknownFrameType  = errors.New("unknown frame type")
)

// Frame is the unit exchanged over every transport.
type Frame struct {
	Type FrameType

	// Timestamp is the sender's clock in UNIX milliseconds.
	Timestamp int64

	// Sender is the Ed25519 public key of the signer.
	Sender [PubKeySize]byte

	Payload []byte

	// Signature is Ed25519 over SignedBytes().
	Signature [SignatureSize]byte
}

// SignedBytes returns the header and payload, the portion covered by the
// signature.
func (f *Frame) SignedBytes() []byte {
	data := make([]byte, FrameHeaderSize+len(f.Payload))
	f.putHeader(data)
	copy(data[FrameHeaderSize:], f.Payload)
	return data
}

// WriteTo serializes the frame.
func (f *Frame) WriteTo() ([]byte, error) {
	if len(f.Payload) > MaxFramePayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrFramePayloadLarge, len(f.Payload))
	}
	data := make([]byte, FrameOverhead+len(f.Payload))
	f.putHeader(data)
	copy(data[FrameHeaderSize:], f.Payload)
	copy(data[FrameHeaderSize+len(f.Payload):], f.Signature[:])
	return data, nil
}

// ReadFrom parses a serialized frame.
func (f *Frame) ReadFrom(data []byte) error {
	if len(data) < FrameOverhead {
		return fmt.Errorf("%w: expected at least %d bytes, got %d",
			ErrFrameTooShort, FrameOverhead, len(data))
	}

	t := FrameType(data[0])
	if t > FrameSnapshot {
		return fmt.Errorf("%w: %d", ErrUnknownFrameType, data[0])
	}

	payloadLen := int(binary.LittleEndian.Uint16(data[41:43]))
	if payloadLen > MaxFramePayload {
		return fmt.Errorf("%w: %d bytes", ErrFramePayloadLarge, payloadLen)
	}
	if len(data) != FrameOverhead+payloadLen {
		return fmt.Errorf("%w: header says %d payload bytes, frame has %d",
			ErrFrameLength, payloadLen, len(data)-FrameOverhead)
	}

	f.Type = t
	f.Timestamp = int64(binary.LittleEndian.Uint64(data[1:9]))
	copy(f.Sender[:], data[9:41])
	f.Payload = make([]byte, payloadLen)
	copy(f.Payload, data[FrameHeaderSize:FrameHeaderSize+payloadLen])
	copy(f.Signature[:], data[FrameHeaderSize+payloadLen:])
	return nil
}

func (f *Frame) putHeader(data []byte) {
	data[0] = byte(f.Type)
	binary.LittleEndian.PutUint64(data[1:9], uint64(f.Timestamp))
	copy(data[9:41], f.Sender[:])
	binary.LittleEndian.PutUint16(data[41:43], uint16(len(f.Payload)))
}
