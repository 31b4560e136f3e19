package dedupe

import (
	"encoding/binary"
	"testing"

	"github.com/kabili207/prisma-go/core/codec"
)

// makeFrame builds a frame whose signature is derived from n, standing in
// for distinct signed content.
func makeFrame(t codec.FrameType, n uint32) *codec.Frame {
	f := &codec.Frame{Type: t, Payload: []byte("feed")}
	binary.LittleEndian.PutUint32(f.Signature[:4], n)
	return f
}

func TestHasSeen_NewFrame(t *testing.T) {
	d := New()
	if d.HasSeen(makeFrame(codec.FrameCommand, 1)) {
		t.Error("new frame should not be marked as seen")
	}
}

func TestHasSeen_Duplicate(t *testing.T) {
	d := New()
	f := makeFrame(codec.FrameCommand, 1)
	d.HasSeen(f)
	if !d.HasSeen(f) {
		t.Error("duplicate frame should be marked as seen")
	}
}

func TestHasSeen_DifferentSignature(t *testing.T) {
	d := New()
	d.HasSeen(makeFrame(codec.FrameCommand, 1))
	if d.HasSeen(makeFrame(codec.FrameCommand, 2)) {
		t.Error("different frame should not be marked as seen")
	}
}

func TestHasSeen_DifferentType(t *testing.T) {
	d := New()
	d.HasSeen(makeFrame(codec.FrameCommand, 1))
	if d.HasSeen(makeFrame(codec.FrameReply, 1)) {
		t.Error("same signature with different type should not be marked as seen")
	}
}

func TestHasSeen_ReusedSignature(t *testing.T) {
	tests := []struct {
		name   string
		modify func(f *codec.Frame)
	}{
		{"payload", func(f *codec.Frame) { f.Payload = []byte("forged") }},
		{"timestamp", func(f *codec.Frame) { f.Timestamp++ }},
		{"sender", func(f *codec.Frame) { f.Sender[0] ^= 0xFF }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New()
			orig := makeFrame(codec.FrameCommand, 1)
			forged := *orig
			tt.modify(&forged)

			if d.HasSeen(&forged) {
				t.Fatal("forged frame reported as seen on first sight")
			}
			if d.HasSeen(orig) {
				t.Error("original frame suppressed by a copy with the same signature")
			}
		})
	}
}

func TestHasSeen_ZeroHashNotPreseeded(t *testing.T) {
	// An empty table must not report a match for any frame, even one whose
	// hash happens to be compared against zeroed slots.
	d := NewWithCapacity(4)
	for i := range uint32(4) {
		if d.HasSeen(makeFrame(codec.FrameSnapshot, i)) {
			t.Fatalf("frame %d reported as seen on first sight", i)
		}
	}
}

func TestHasSeen_Eviction(t *testing.T) {
	d := NewWithCapacity(3)
	for i := range uint32(3) {
		d.HasSeen(makeFrame(codec.FrameCommand, i))
	}
	// Fourth frame evicts the first.
	d.HasSeen(makeFrame(codec.FrameCommand, 3))

	if d.HasSeen(makeFrame(codec.FrameCommand, 0)) {
		t.Error("evicted frame should no longer be seen")
	}
	if !d.HasSeen(makeFrame(codec.FrameCommand, 3)) {
		t.Error("most recent frame should still be seen")
	}
}

func TestClear(t *testing.T) {
	d := New()
	f := makeFrame(codec.FrameCommand, 7)
	d.HasSeen(f)
	d.Clear()
	if d.HasSeen(f) {
		t.Error("frame still seen after Clear")
	}
}

func TestCalculateFrameHash_Deterministic(t *testing.T) {
	a := makeFrame(codec.FrameCommand, 9)
	b := makeFrame(codec.FrameCommand, 9)
	if CalculateFrameHash(a) != CalculateFrameHash(b) {
		t.Error("identical frames hash differently")
	}
}
