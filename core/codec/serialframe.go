package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// SerialMagic starts every serial frame.
	SerialMagic uint16 = 0xC03E
	// SerialHeaderSize is magic(2) + length(2).
	SerialHeaderSize = 4
	// SerialChecksumSize is the trailing Fletcher-16 checksum.
	SerialChecksumSize = 2
	// MinSerialFrameSize is a serial frame with an empty body.
	MinSerialFrameSize = SerialHeaderSize + SerialChecksumSize
	// MaxSerialBody is the largest body a serial frame carries: one full Frame.
	MaxSerialBody = FrameOverhead + MaxFramePayload
)

var (
	ErrSerialTooShort   = errors.New("serial frame too short")
	ErrSerialMagic      = errors.New("invalid serial frame magic")
	ErrSerialBodyLarge  = errors.New("serial frame body exceeds maximum size")
	ErrSerialChecksum   = errors.New("serial frame checksum mismatch")
	ErrSerialIncomplete = errors.New("incomplete serial frame")
)

// EncodeSerialFrame wraps body for a byte stream:
// [magic (2 BE)][length (2 BE)][body][fletcher16 (2 BE)].
func EncodeSerialFrame(body []byte) ([]byte, error) {
	if len(body) > MaxSerialBody {
		return nil, ErrSerialBodyLarge
	}
	out := make([]byte, SerialHeaderSize+len(body)+SerialChecksumSize)
	binary.BigEndian.PutUint16(out[0:2], SerialMagic)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(body)))
	copy(out[SerialHeaderSize:], body)
	binary.BigEndian.PutUint16(out[SerialHeaderSize+len(body):], Fletcher16(body))
	return out, nil
}

// DecodeSerialFrame extracts the first serial frame from data. It returns the
// body and the bytes following the frame. On ErrSerialIncomplete the caller
// should wait for more data; other errors mean data does not start with a
// valid frame.
func DecodeSerialFrame(data []byte) (body, rest []byte, err error) {
	if len(data) < MinSerialFrameSize {
		return nil, data, ErrSerialTooShort
	}
	if binary.BigEndian.Uint16(data[0:2]) != SerialMagic {
		return nil, data, ErrSerialMagic
	}
	n := int(binary.BigEndian.Uint16(data[2:4]))
	if n > MaxSerialBody {
		return nil, data, ErrSerialBodyLarge
	}
	total := SerialHeaderSize + n + SerialChecksumSize
	if len(data) < total {
		return nil, data, ErrSerialIncomplete
	}

	raw := data[SerialHeaderSize : SerialHeaderSize+n]
	want := binary.BigEndian.Uint16(data[SerialHeaderSize+n : total])
	if got := Fletcher16(raw); got != want {
		return nil, data, fmt.Errorf("%w: computed %04x, frame has %04x", ErrSerialChecksum, got, want)
	}

	body = make([]byte, n)
	copy(body, raw)
	return body, data[total:], nil
}

// FindSerialMagic returns the index of the first magic sequence in data, or -1.
func FindSerialMagic(data []byte) int {
	hi, lo := byte(SerialMagic>>8), byte(SerialMagic&0xFF)
	for i := 0; i+1 < len(data); i++ {
		if data[i] == hi && data[i+1] == lo {
			return i
		}
	}
	return -1
}

// Fletcher16 computes the Fletcher-16 checksum of data (modulus 255).
func Fletcher16(data []byte) uint16 {
	var a, b uint16
	for _, c := range data {
		a = (a + uint16(c)) % 255
		b = (b + a) % 255
	}
	return b<<8 | a
}
