// Package shell provides the text front end for a session: a command console
// usable from stdin, and the same console driven remotely by signed frames
// arriving over MQTT or serial.
//
// One shell serves one session. A remote terminal pairs with the shell by
// sending a successful login command; after that only the paired key may
// issue commands until it logs out or another terminal logs in. Every change
// to the session or the content store is pushed to remote terminals as a
// snapshot frame.
package shell

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kabili207/prisma-go/core/clock"
	"github.com/kabili207/prisma-go/core/crypto"
	"github.com/kabili207/prisma-go/core/dedupe"
	"github.com/kabili207/prisma-go/core/session"
	"github.com/kabili207/prisma-go/core/store"
)

const defaultVersion = "prisma-go"

// Config configures a Shell.
type Config struct {
	// Session is the session the shell drives. Required.
	Session *session.Session

	// KeyPair signs outgoing frames and derives the sealing secret for the
	// paired terminal. Required for remote operation.
	KeyPair *crypto.KeyPair

	// Clock for frame timestamps. Defaults to clock.New().
	Clock *clock.Clock

	// Name is the shell's display name, carried in announce frames and
	// returned by "get name".
	Name string

	// Version is returned by the "ver" command. Defaults to "prisma-go".
	Version string

	// Logger for shell events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Shell executes console commands against a session and serves remote
// terminals.
type Shell struct {
	cfg   Config
	log   *slog.Logger
	dedup *dedupe.FrameDeduplicator

	started time.Time

	mu        sync.Mutex
	sessionID string
	peer      *peer

	linksMu sync.RWMutex
	links   []link
}

// peer is the terminal currently paired with the shell.
type peer struct {
	key    [32]byte
	secret []byte
	// lastTimestamp is the newest command timestamp accepted from the peer.
	lastTimestamp int64
}

// New creates a shell and subscribes it to changes in the session's store.
func New(cfg Config) *Shell {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Version == "" {
		cfg.Version = defaultVersion
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Shell{
		cfg:       cfg,
		log:       logger.WithGroup("shell"),
		dedup:     dedupe.New(),
		started:   cfg.Clock.Now(),
		sessionID: uuid.NewString(),
	}
	cfg.Session.Store().SetOnChange(s.onStoreChange)
	return s
}

// Session returns the session driven by the shell.
func (s *Shell) Session() *session.Session { return s.cfg.Session }

// SessionID returns the id of the current login. A new id is assigned on
// every successful login.
func (s *Shell) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Paired reports whether a remote terminal is paired and returns its key.
func (s *Shell) Paired() ([32]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer == nil {
		return [32]byte{}, false
	}
	return s.peer.key, true
}

func (s *Shell) onStoreChange(ev store.Event) {
	s.log.Debug("store changed", "event", ev.Type.String(), "key", ev.Key, "id", ev.Item.ID)
	s.PublishSnapshot()
}

func (s *Shell) newSession() {
	s.mu.Lock()
	s.sessionID = uuid.NewString()
	s.mu.Unlock()
}
