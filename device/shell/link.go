package shell

import (
	"errors"

	"github.com/kabili207/prisma-go/core/codec"
	"github.com/kabili207/prisma-go/core/crypto"
	"github.com/kabili207/prisma-go/transport"
)

// ErrNoKeyPair is returned when a frame must be signed but the shell has no
// key pair.
var ErrNoKeyPair = errors.New("shell has no key pair")

type link struct {
	transport transport.Transport
	source    transport.FrameSource
}

// AddTransport registers a transport. The shell installs itself as the
// transport's frame handler and sends replies and snapshots through it.
func (s *Shell) AddTransport(t transport.Transport, source transport.FrameSource) {
	s.linksMu.Lock()
	s.links = append(s.links, link{transport: t, source: source})
	s.linksMu.Unlock()

	t.SetFrameHandler(s.HandleFrame)
}

// hasConnectedLink reports whether any registered transport is connected.
func (s *Shell) hasConnectedLink() bool {
	s.linksMu.RLock()
	defer s.linksMu.RUnlock()
	for _, l := range s.links {
		if l.transport.IsConnected() {
			return true
		}
	}
	return false
}

// SendFrame signs a frame of the given type and sends it to every connected
// transport.
func (s *Shell) SendFrame(frameType codec.FrameType, payload []byte) error {
	if s.cfg.KeyPair == nil {
		return ErrNoKeyPair
	}
	f := &codec.Frame{
		Type:      frameType,
		Timestamp: s.cfg.Clock.NowMillis(),
		Payload:   payload,
	}
	crypto.SignFrame(s.cfg.KeyPair, f)

	// Echoes of our own frames are dropped on arrival.
	s.dedup.HasSeen(f)

	s.broadcast(f)
	return nil
}

func (s *Shell) broadcast(f *codec.Frame) {
	s.linksMu.RLock()
	links := make([]link, len(s.links))
	copy(links, s.links)
	s.linksMu.RUnlock()

	for _, l := range links {
		if !l.transport.IsConnected() {
			continue
		}
		if err := l.transport.SendFrame(f); err != nil {
			s.log.Warn("failed to send frame",
				"transport", l.source.String(), "type", f.Type.String(), "error", err)
		}
	}
}
