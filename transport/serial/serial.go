// Package serial provides a serial transport for terminals attached over a
// serial line.
//
// Each frame travels wrapped in a serial envelope (magic, length, Fletcher-16
// checksum). The transport reassembles envelopes from the raw byte stream and
// exposes the same Transport interface as the MQTT transport.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"go.bug.st/serial"

	"github.com/kabili207/prisma-go/core/codec"
	"github.com/kabili207/prisma-go/transport"
)

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

const (
	// DefaultBaudRate is the default baud rate for terminal connections.
	DefaultBaudRate = 115200

	// readBufSize is the size of the serial read buffer.
	readBufSize = 512
)

// Config holds the configuration for a serial transport.
type Config struct {
	// Port is the serial port path (e.g., "/dev/ttyUSB0" or "COM3").
	Port string
	// BaudRate is the serial baud rate. Defaults to 115200.
	BaudRate int
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Transport implements transport.Transport over a serial connection.
type Transport struct {
	cfg          Config
	port         serial.Port
	log          *slog.Logger
	mu           sync.RWMutex
	connected    bool
	cancel       context.CancelFunc
	done         chan struct{}
	frameHandler transport.FrameHandler
	stateHandler transport.StateHandler
}

// New creates a new serial transport with the given configuration.
func New(cfg Config) *Transport {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Transport{
		cfg: cfg,
		log: cfg.Logger.WithGroup("serial"),
	}
}

// Start opens the serial port and begins reading frames.
func (t *Transport) Start(ctx context.Context) error {
	if t.cfg.Port == "" {
		return errors.New("serial port is required")
	}

	mode := &serial.Mode{
		BaudRate: t.cfg.BaudRate,
	}

	port, err := serial.Open(t.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("opening serial port: %w", err)
	}

	t.mu.Lock()
	t.port = port
	t.connected = true
	t.done = make(chan struct{})
	handler := t.stateHandler
	t.mu.Unlock()

	readCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	go t.readLoop(readCtx)

	t.log.Info("connected to serial port", "port", t.cfg.Port, "baud", t.cfg.BaudRate)

	if handler != nil {
		handler(t, transport.EventConnected)
	}

	return nil
}

// Stop closes the serial port and stops the read loop.
func (t *Transport) Stop() error {
	t.mu.Lock()
	handler := t.stateHandler
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	t.mu.Lock()
	t.connected = false
	port := t.port
	t.port = nil
	done := t.done
	t.mu.Unlock()

	var err error
	if port != nil {
		err = port.Close()
	}

	// Wait for read loop to finish
	if done != nil {
		<-done
	}

	if handler != nil {
		handler(t, transport.EventDisconnected)
	}

	return err
}

// IsConnected returns true if the serial port is open.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// SetFrameHandler sets the callback for incoming frames.
func (t *Transport) SetFrameHandler(fn transport.FrameHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frameHandler = fn
}

// SetStateHandler sets the callback for transport state changes.
func (t *Transport) SetStateHandler(fn transport.StateHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateHandler = fn
}

// SendFrame encodes a frame in a serial envelope and writes it to the port.
func (t *Transport) SendFrame(frame *codec.Frame) error {
	t.mu.RLock()
	port := t.port
	connected := t.connected
	t.mu.RUnlock()

	if !connected || port == nil {
		return errors.New("not connected")
	}

	body, err := frame.WriteTo()
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	data, err := codec.EncodeSerialFrame(body)
	if err != nil {
		return fmt.Errorf("encoding serial frame: %w", err)
	}

	if _, err := port.Write(data); err != nil {
		return fmt.Errorf("writing to serial port: %w", err)
	}
	return nil
}

// readLoop reads from the serial port and reassembles serial envelopes.
func (t *Transport) readLoop(ctx context.Context) {
	defer close(t.done)

	buf := make([]byte, readBufSize)
	var pending []byte

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := t.port.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				t.log.Error("serial read error", "error", err)
			}
			t.handleDisconnect(err)
			return
		}

		if n == 0 {
			continue
		}

		pending = append(pending, buf[:n]...)
		pending = t.processFrames(pending)
	}
}

// processFrames extracts complete envelopes from data and dispatches the
// frames they carry. It returns the bytes that do not yet form an envelope.
func (t *Transport) processFrames(data []byte) []byte {
	for len(data) >= codec.MinSerialFrameSize {
		body, rest, err := codec.DecodeSerialFrame(data)
		if err != nil {
			if errors.Is(err, codec.ErrSerialIncomplete) {
				return data
			}
			// Resync on the next magic.
			if idx := codec.FindSerialMagic(data[1:]); idx >= 0 {
				data = data[1+idx:]
				continue
			}
			if data[len(data)-1] == byte(codec.SerialMagic>>8) {
				return data[len(data)-1:]
			}
			return nil
		}

		data = rest

		var frame codec.Frame
		if err := frame.ReadFrom(body); err != nil {
			t.log.Debug("failed to parse frame from serial envelope", "error", err)
			continue
		}

		t.mu.RLock()
		handler := t.frameHandler
		t.mu.RUnlock()

		if handler != nil {
			handler(&frame, transport.FrameSourceSerial)
		}
	}

	return data
}

func (t *Transport) handleDisconnect(err error) {
	t.mu.Lock()
	t.connected = false
	handler := t.stateHandler
	t.mu.Unlock()

	if err != nil {
		t.log.Error("serial disconnected", "error", err)
	}

	if handler != nil {
		handler(t, transport.EventDisconnected)
	}
}
