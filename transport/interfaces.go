// Package transport provides the frame transports connecting the shell to
// remote terminals.
package transport

import (
	"context"

	"github.com/kabili207/prisma-go/core/codec"
)

// Transport is the base interface for all transport implementations.
type Transport interface {
	// Start begins the transport's connection and frame handling.
	// The provided context controls the transport's lifetime.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the transport.
	Stop() error
	// IsConnected returns true if the transport is currently connected.
	IsConnected() bool
	// SetFrameHandler sets the callback for incoming frames.
	SetFrameHandler(fn FrameHandler)
	// SetStateHandler sets the callback for transport state changes.
	SetStateHandler(fn StateHandler)
	// SendFrame encodes and transmits a frame.
	SendFrame(frame *codec.Frame) error
}

// FrameHandler is called when a frame is received.
type FrameHandler func(frame *codec.Frame, source FrameSource)

// StateHandler is called when the transport state changes.
type StateHandler func(transport Transport, event Event)

// Event represents transport state change events.
type Event int

const (
	// EventConnected is fired when the transport connects.
	EventConnected Event = iota
	// EventDisconnected is fired when the transport disconnects.
	EventDisconnected
	// EventReconnecting is fired when the transport is attempting to reconnect.
	EventReconnecting
	// EventError is fired when an error occurs.
	EventError
)

func (e Event) String() string {
	switch e {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventReconnecting:
		return "reconnecting"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// FrameSource indicates where a frame came from.
type FrameSource int

const (
	// FrameSourceMQTT indicates the frame came from the MQTT broker.
	FrameSourceMQTT FrameSource = iota
	// FrameSourceSerial indicates the frame came from a serial terminal.
	FrameSourceSerial
	// FrameSourceLocal indicates the frame was produced in-process.
	FrameSourceLocal
)

func (s FrameSource) String() string {
	switch s {
	case FrameSourceMQTT:
		return "mqtt"
	case FrameSourceSerial:
		return "serial"
	case FrameSourceLocal:
		return "local"
	default:
		return "unknown"
	}
}
