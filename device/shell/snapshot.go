package shell

import (
	"github.com/kabili207/prisma-go/core/codec"
	"github.com/kabili207/prisma-go/core/content"
	"github.com/kabili207/prisma-go/core/crypto"
)

// PublishSnapshot sends the current view to remote terminals. It does
// nothing when no transport is connected.
func (s *Shell) PublishSnapshot() {
	if s.cfg.KeyPair == nil || !s.hasConnectedLink() {
		return
	}
	payload, err := s.encodeSnapshot()
	if err != nil {
		s.log.Warn("failed to encode snapshot", "error", err)
		return
	}
	if err := s.SendFrame(codec.FrameSnapshot, payload); err != nil {
		s.log.Warn("failed to send snapshot", "error", err)
	}
}

// Snapshot returns the view remote terminals receive. Private post content
// is sealed for the paired terminal, or withheld when none is paired.
func (s *Shell) Snapshot() *codec.Snapshot {
	sess := s.cfg.Session
	ident := sess.CurrentIdentity()

	s.mu.Lock()
	snap := &codec.Snapshot{SessionID: s.sessionID}
	var secret []byte
	if s.peer != nil {
		secret = s.peer.secret
	}
	s.mu.Unlock()

	snap.LoggedIn = sess.LoggedIn()
	snap.Username = sess.Username()
	snap.IdentityID = ident.ID
	snap.IdentityName = ident.Name
	snap.IdentityColor = ident.Color
	snap.Visibility = uint8(sess.Visibility())

	if !snap.LoggedIn {
		return snap
	}
	for _, it := range sess.Feed() {
		snap.Feed = append(snap.Feed, s.snapshotItem(it, secret))
	}
	for _, it := range sess.Chat() {
		snap.Chat = append(snap.Chat, s.snapshotItem(it, secret))
	}
	return snap
}

func (s *Shell) snapshotItem(it content.Item, secret []byte) codec.SnapshotItem {
	out := codec.SnapshotItem{
		ID:         it.ID,
		Kind:       uint8(it.Kind),
		Visibility: uint8(it.Visibility),
		CreatedAt:  it.CreatedAt.UnixMilli(),
		Author:     it.Author,
		Content:    []byte(it.Content),
	}
	if it.Expires() {
		out.ExpiresAt = it.ExpiresAt.UnixMilli()
	}
	if it.Kind != content.KindPost || it.Visibility != content.Private {
		return out
	}

	out.Sealed = true
	out.Content = nil
	if secret == nil {
		return out
	}
	sealed, err := crypto.Seal(secret, []byte(it.Content), []byte(it.ID))
	if err != nil {
		s.log.Warn("failed to seal private post", "id", it.ID, "error", err)
		return out
	}
	out.Content = sealed
	return out
}

// encodeSnapshot encodes the current view, dropping the oldest items until it
// fits in one frame.
func (s *Shell) encodeSnapshot() ([]byte, error) {
	snap := s.Snapshot()
	for {
		payload, err := codec.BuildSnapshot(snap)
		if err != nil {
			return nil, err
		}
		if len(payload) <= codec.MaxFramePayload {
			return payload, nil
		}
		switch {
		case len(snap.Feed) == 0 && len(snap.Chat) == 0:
			return nil, codec.ErrFramePayloadLarge
		case len(snap.Feed) >= len(snap.Chat):
			// Feed is newest first.
			snap.Feed = snap.Feed[:len(snap.Feed)-1]
		default:
			// Chat is oldest first.
			snap.Chat = snap.Chat[1:]
		}
	}
}
