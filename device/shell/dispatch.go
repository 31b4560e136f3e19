package shell

import (
	"encoding/hex"
	"unicode/utf8"

	"github.com/kabili207/prisma-go/core/codec"
	"github.com/kabili207/prisma-go/core/crypto"
	"github.com/kabili207/prisma-go/transport"
)

// HandleFrame is the entry point for frames from every transport. Only
// command frames are acted on. A command frame is recorded as seen only
// after its signature checks out.
func (s *Shell) HandleFrame(f *codec.Frame, src transport.FrameSource) {
	if s.cfg.KeyPair != nil && f.Sender == s.cfg.KeyPair.ID() {
		return
	}
	if f.Type == codec.FrameCommand {
		if err := crypto.VerifyFrame(f); err != nil {
			s.log.Debug("dropping command frame", "source", src.String(), "error", err)
			return
		}
	}
	if s.dedup.HasSeen(f) {
		return
	}

	switch f.Type {
	case codec.FrameCommand:
		s.handleCommand(f, src)
	case codec.FrameAnnounce:
		s.log.Debug("announce", "name", string(f.Payload), "source", src.String())
	default:
		s.log.Debug("ignoring frame", "type", f.Type.String(), "source", src.String())
	}
}

// handleCommand runs a verified command frame.
func (s *Shell) handleCommand(f *codec.Frame, src transport.FrameSource) {
	line := string(f.Payload)
	verb, _ := splitCommand(line)

	s.mu.Lock()
	paired := s.peer != nil && s.peer.key == f.Sender
	if paired {
		if f.Timestamp <= s.peer.lastTimestamp {
			s.mu.Unlock()
			s.log.Debug("dropping replayed command", "source", src.String())
			return
		}
		s.peer.lastTimestamp = f.Timestamp
	}
	s.mu.Unlock()

	if !paired && verb != "login" {
		s.reply("Error: login required")
		return
	}

	s.log.Debug("remote command", "source", src.String(), "verb", verb)

	reply, changed := s.executeCLI(line)
	switch verb {
	case "login":
		if s.cfg.Session.LoggedIn() && reply == "OK" {
			if err := s.pair(f); err != nil {
				s.log.Warn("failed to pair terminal", "error", err)
				reply = "Error: " + err.Error()
			}
		}
	case "logout":
		if paired {
			s.unpair()
		}
	}

	s.reply(reply)
	if changed {
		s.PublishSnapshot()
	}
}

// pair makes the frame's sender the paired terminal.
func (s *Shell) pair(f *codec.Frame) error {
	if s.cfg.KeyPair == nil {
		return ErrNoKeyPair
	}
	secret, err := crypto.ComputeSharedSecret(s.cfg.KeyPair.PrivateKey, f.Sender[:])
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.peer = &peer{key: f.Sender, secret: secret, lastTimestamp: f.Timestamp}
	s.mu.Unlock()
	s.log.Info("terminal paired", "peer", shortKey(f.Sender))
	return nil
}

func (s *Shell) unpair() {
	s.mu.Lock()
	s.peer = nil
	s.mu.Unlock()
}

func (s *Shell) reply(text string) {
	if text == "" {
		return
	}
	payload := truncateUTF8([]byte(text), codec.MaxFramePayload)
	if err := s.SendFrame(codec.FrameReply, payload); err != nil {
		s.log.Warn("failed to send reply", "error", err)
	}
}

// truncateUTF8 cuts b to at most limit bytes without splitting a rune.
func truncateUTF8(b []byte, limit int) []byte {
	if len(b) <= limit {
		return b
	}
	n := limit
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return b[:n]
}

func shortKey(k [32]byte) string {
	return hex.EncodeToString(k[:8])
}
