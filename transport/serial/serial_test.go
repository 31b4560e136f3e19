package serial

import (
	"bytes"
	"testing"

	"github.com/kabili207/prisma-go/core/codec"
	"github.com/kabili207/prisma-go/transport"
)

func makeTestFrame(payload string) *codec.Frame {
	return &codec.Frame{
		Type:      codec.FrameCommand,
		Timestamp: 1_700_000_000_000,
		Payload:   []byte(payload),
	}
}

// envelope wraps a frame in a serial envelope.
func envelope(t *testing.T, f *codec.Frame) []byte {
	t.Helper()
	body, err := f.WriteTo()
	if err != nil {
		t.Fatalf("encoding frame: %v", err)
	}
	data, err := codec.EncodeSerialFrame(body)
	if err != nil {
		t.Fatalf("encoding serial frame: %v", err)
	}
	return data
}

// collector returns a transport whose handler appends received payloads.
func collector(t *testing.T) (*Transport, *[]string) {
	t.Helper()
	var received []string
	tr := New(Config{Port: "/dev/null"})
	tr.SetFrameHandler(func(f *codec.Frame, source transport.FrameSource) {
		if source != transport.FrameSourceSerial {
			t.Errorf("expected FrameSourceSerial, got %v", source)
		}
		received = append(received, string(f.Payload))
	})
	return tr, &received
}

func TestProcessFrames_SingleFrame(t *testing.T) {
	tr, received := collector(t)

	remaining := tr.processFrames(envelope(t, makeTestFrame("post oi")))
	if len(remaining) != 0 {
		t.Errorf("expected no remaining bytes, got %d", len(remaining))
	}
	if len(*received) != 1 || (*received)[0] != "post oi" {
		t.Fatalf("received = %q", *received)
	}
}

func TestProcessFrames_MultipleFrames(t *testing.T) {
	tr, received := collector(t)

	data := append(envelope(t, makeTestFrame("a")), envelope(t, makeTestFrame("b"))...)
	if remaining := tr.processFrames(data); len(remaining) != 0 {
		t.Errorf("expected no remaining bytes, got %d", len(remaining))
	}
	if len(*received) != 2 || (*received)[0] != "a" || (*received)[1] != "b" {
		t.Fatalf("received = %q", *received)
	}
}

func TestProcessFrames_PartialFrame(t *testing.T) {
	tr, received := collector(t)
	full := envelope(t, makeTestFrame("feed"))

	half := len(full) / 2
	remaining := tr.processFrames(full[:half])
	if len(*received) != 0 {
		t.Fatal("handler called on partial frame")
	}
	if !bytes.Equal(remaining, full[:half]) {
		t.Fatal("partial data should be returned unchanged")
	}

	remaining = tr.processFrames(append(remaining, full[half:]...))
	if len(remaining) != 0 {
		t.Errorf("expected no remaining bytes, got %d", len(remaining))
	}
	if len(*received) != 1 {
		t.Fatalf("expected 1 frame after completion, got %d", len(*received))
	}
}

func TestProcessFrames_GarbageBeforeFrame(t *testing.T) {
	tr, received := collector(t)

	data := append([]byte{0x01, 0x02, 0x03, 0xC0, 0x00, 0x99, 0x98, 0x97}, envelope(t, makeTestFrame("msgs"))...)
	if remaining := tr.processFrames(data); len(remaining) != 0 {
		t.Errorf("expected no remaining bytes, got %d", len(remaining))
	}
	if len(*received) != 1 || (*received)[0] != "msgs" {
		t.Fatalf("received = %q", *received)
	}
}

func TestProcessFrames_BadChecksumSkipped(t *testing.T) {
	tr, received := collector(t)

	bad := envelope(t, makeTestFrame("x"))
	bad[len(bad)-1] ^= 0xFF
	data := append(bad, envelope(t, makeTestFrame("y"))...)

	tr.processFrames(data)
	if len(*received) != 1 || (*received)[0] != "y" {
		t.Fatalf("received = %q, want only y", *received)
	}
}

func TestProcessFrames_InvalidBodySkipped(t *testing.T) {
	tr, received := collector(t)

	junk, err := codec.EncodeSerialFrame([]byte{0x01, 0x02})
	if err != nil {
		t.Fatal(err)
	}
	data := append(junk, envelope(t, makeTestFrame("ok"))...)

	tr.processFrames(data)
	if len(*received) != 1 || (*received)[0] != "ok" {
		t.Fatalf("received = %q", *received)
	}
}

func TestProcessFrames_AllGarbage(t *testing.T) {
	tr, received := collector(t)
	remaining := tr.processFrames([]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77})
	if len(remaining) != 0 {
		t.Errorf("expected garbage to be discarded, got %d bytes", len(remaining))
	}
	if len(*received) != 0 {
		t.Error("handler called for garbage")
	}
}

func TestProcessFrames_NoHandler(t *testing.T) {
	tr := New(Config{Port: "/dev/null"})
	remaining := tr.processFrames(envelope(t, makeTestFrame("z")))
	if len(remaining) != 0 {
		t.Errorf("expected no remaining bytes, got %d", len(remaining))
	}
}

func TestNew_Defaults(t *testing.T) {
	tr := New(Config{Port: "/dev/ttyUSB0"})
	if tr.cfg.BaudRate != DefaultBaudRate {
		t.Errorf("BaudRate = %d, want %d", tr.cfg.BaudRate, DefaultBaudRate)
	}
	if tr.IsConnected() {
		t.Error("expected not connected initially")
	}
}

func TestStart_MissingPort(t *testing.T) {
	tr := New(Config{})
	if err := tr.Start(t.Context()); err == nil {
		t.Fatal("expected error with empty port")
	}
}

func TestSendFrame_NotConnected(t *testing.T) {
	tr := New(Config{Port: "/dev/ttyUSB0"})
	if err := tr.SendFrame(makeTestFrame("x")); err == nil {
		t.Fatal("expected error when not connected")
	}
}
