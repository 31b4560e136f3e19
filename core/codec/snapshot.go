package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrSnapshotTooShort = errors.New("snapshot too short")
	ErrFieldTooLong     = errors.New("field exceeds 65535 bytes")
)

// SnapshotItem is one post or chat message as rendered by a terminal.
type SnapshotItem struct {
	ID         string
	Kind       uint8
	Visibility uint8

	// Sealed marks Content as ciphertext for the paired terminal.
	Sealed bool

	// CreatedAt and ExpiresAt are UNIX milliseconds; ExpiresAt is 0 for
	// items that never expire.
	CreatedAt int64
	ExpiresAt int64

	Author  string
	Content []byte
}

// Snapshot is the full view a terminal needs to redraw: login state, current
// identity, selected visibility, the identity's feed (newest first) and the
// chat (oldest first).
type Snapshot struct {
	SessionID     string
	LoggedIn      bool
	Username      string
	IdentityID    string
	IdentityName  string
	IdentityColor string
	Visibility    uint8
	Feed          []SnapshotItem
	Chat          []SnapshotItem
}

// BuildSnapshot encodes a snapshot payload.
func BuildSnapshot(s *Snapshot) ([]byte, error) {
	w := &writer{}
	w.str(s.SessionID)
	w.bool(s.LoggedIn)
	w.str(s.Username)
	w.str(s.IdentityID)
	w.str(s.IdentityName)
	w.str(s.IdentityColor)
	w.u8(s.Visibility)
	w.items(s.Feed)
	w.items(s.Chat)
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

// ParseSnapshot decodes a snapshot payload.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	r := &reader{data: data}
	s := &Snapshot{
		SessionID:     r.str(),
		LoggedIn:      r.bool(),
		Username:      r.str(),
		IdentityID:    r.str(),
		IdentityName:  r.str(),
		IdentityColor: r.str(),
		Visibility:    r.u8(),
	}
	s.Feed = r.items()
	s.Chat = r.items()
	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(data) {
		return nil, fmt.Errorf("snapshot has %d trailing bytes", len(data)-r.off)
	}
	return s, nil
}

type writer struct {
	buf []byte
	err error
}

func (w *writer) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

func (w *writer) i64(v int64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v)) }

func (w *writer) bytes(b []byte) {
	if len(b) > math.MaxUint16 {
		w.err = ErrFieldTooLong
		return
	}
	w.u16(uint16(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) str(s string) { w.bytes([]byte(s)) }

func (w *writer) items(items []SnapshotItem) {
	if len(items) > math.MaxUint16 {
		w.err = ErrFieldTooLong
		return
	}
	w.u16(uint16(len(items)))
	for _, it := range items {
		w.str(it.ID)
		w.u8(it.Kind)
		w.u8(it.Visibility)
		w.bool(it.Sealed)
		w.i64(it.CreatedAt)
		w.i64(it.ExpiresAt)
		w.str(it.Author)
		w.bytes(it.Content)
	}
}

type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if len(r.data)-r.off < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrSnapshotTooShort, n, r.off, len(r.data)-r.off)
		return false
	}
	return true
}

func (r *reader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

func (r *reader) bool() bool { return r.u8() != 0 }

func (r *reader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

func (r *reader) i64() int64 {
	if !r.need(8) {
		return 0
	}
	v := int64(binary.LittleEndian.Uint64(r.data[r.off:]))
	r.off += 8
	return v
}

func (r *reader) bytes() []byte {
	n := int(r.u16())
	if !r.need(n) {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

func (r *reader) str() string { return string(r.bytes()) }

func (r *reader) items() []SnapshotItem {
	n := int(r.u16())
	if r.err != nil || n == 0 {
		return nil
	}
	items := make([]SnapshotItem, 0, n)
	for range n {
		it := SnapshotItem{
			ID:         r.str(),
			Kind:       r.u8(),
			Visibility: r.u8(),
			Sealed:     r.bool(),
			CreatedAt:  r.i64(),
			ExpiresAt:  r.i64(),
			Author:     r.str(),
			Content:    r.bytes(),
		}
		if r.err != nil {
			return nil
		}
		items = append(items, it)
	}
	return items
}
