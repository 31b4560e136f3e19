// Package dedupe tracks recently seen frames so that a frame delivered twice
// (an MQTT broker echoing our own publish, or the same terminal reachable over
// two transports) is handled once.
//
// Frames are identified by an 8-byte truncated SHA-256 of the whole
// serialized frame, so a copy with a reused signature but altered header or
// payload hashes differently from the original. Hashes live in a fixed-size
// circular buffer; the oldest is forgotten first.
package dedupe

import (
	"bytes"
	"crypto/sha256"
	"sync"

	"github.com/kabili207/prisma-go/core/codec"
)

const (
	// DefaultMaxFrameHashes is the default capacity of the hash table.
	DefaultMaxFrameHashes = 128
	// FrameHashSize is the truncated SHA-256 size.
	FrameHashSize = 8
)

// FrameDeduplicator remembers the hashes of recently seen frames.
type FrameDeduplicator struct {
	mu        sync.Mutex
	hashes    []byte // circular buffer of FrameHashSize-byte hashes
	maxHashes int
	next      int
	count     int
}

// New creates a deduplicator with the default capacity.
func New() *FrameDeduplicator {
	return NewWithCapacity(DefaultMaxFrameHashes)
}

// NewWithCapacity creates a deduplicator remembering up to maxHashes frames.
func NewWithCapacity(maxHashes int) *FrameDeduplicator {
	if maxHashes <= 0 {
		maxHashes = DefaultMaxFrameHashes
	}
	return &FrameDeduplicator{
		hashes:    make([]byte, maxHashes*FrameHashSize),
		maxHashes: maxHashes,
	}
}

// HasSeen reports whether the frame was seen before. If not, it is recorded
// and false is returned.
func (d *FrameDeduplicator) HasSeen(f *codec.Frame) bool {
	hash := CalculateFrameHash(f)

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.count {
		offset := i * FrameHashSize
		if bytes.Equal(hash[:], d.hashes[offset:offset+FrameHashSize]) {
			return true
		}
	}

	offset := d.next * FrameHashSize
	copy(d.hashes[offset:offset+FrameHashSize], hash[:])
	d.next = (d.next + 1) % d.maxHashes
	if d.count < d.maxHashes {
		d.count++
	}
	return false
}

// Clear forgets every recorded frame.
func (d *FrameDeduplicator) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.hashes)
	d.next = 0
	d.count = 0
}

// CalculateFrameHash computes SHA-256(header || payload || signature)
// truncated to FrameHashSize bytes.
func CalculateFrameHash(f *codec.Frame) [FrameHashSize]byte {
	h := sha256.New()
	h.Write(f.SignedBytes())
	h.Write(f.Signature[:])
	var out [FrameHashSize]byte
	copy(out[:], h.Sum(nil))
	return out
}
