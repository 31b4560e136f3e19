// Package session routes user actions from the presentation layer to the
// content store: the login gate, identity switching, visibility selection,
// post submission and chat messages.
//
// None of this is access control. The username only gates entry, and
// switching identities only changes which feed collection is shown.
package session

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/kabili207/prisma-go/core/content"
	"github.com/kabili207/prisma-go/core/identity"
	"github.com/kabili207/prisma-go/core/store"
)

// Config configures a Session.
type Config struct {
	// Store receives posts and chat messages. Required.
	Store *store.Store

	// Identities is the identity selector. Defaults to a selector over
	// identity.Presets.
	Identities *identity.Selector

	// Logger for session events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Session holds the state of one user's screen.
type Session struct {
	cfg Config
	log *slog.Logger

	mu         sync.RWMutex
	username   string
	loggedIn   bool
	visibility content.Visibility
}

// New creates a logged-out session with Public visibility selected.
func New(cfg Config) *Session {
	if cfg.Identities == nil {
		cfg.Identities = identity.NewSelector(nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:        cfg,
		log:        logger.WithGroup("session"),
		visibility: content.Public,
	}
}

// Store returns the backing content store.
func (s *Session) Store() *store.Store { return s.cfg.Store }

// Login enters the main screen. A blank username is ignored and the session
// stays logged out.
func (s *Session) Login(username string) bool {
	if content.IsBlank(username) {
		return false
	}
	name := strings.TrimSpace(username)
	s.mu.Lock()
	s.username = name
	s.loggedIn = true
	s.mu.Unlock()

	s.log.Info("logged in", "user", name)
	return true
}

// Logout returns to the login screen. Content is kept.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = ""
	s.loggedIn = false
}

// LoggedIn reports whether the login gate has been passed.
func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn
}

// Username returns the name entered at login.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// CurrentIdentity returns the selected identity.
func (s *Session) CurrentIdentity() identity.Identity {
	return s.cfg.Identities.Current()
}

// SwitchIdentity advances to the next identity in the fixed cycle.
func (s *Session) SwitchIdentity() identity.Identity {
	next := s.cfg.Identities.Next()
	s.log.Debug("identity switched", "id", next.ID, "name", next.Name)
	return next
}

// SelectIdentity jumps to the identity with the given id.
func (s *Session) SelectIdentity(id string) bool {
	return s.cfg.Identities.Select(id)
}

// Identities returns the fixed identity list.
func (s *Session) Identities() []identity.Identity {
	return s.cfg.Identities.All()
}

// Visibility returns the tag applied to the next post.
func (s *Session) Visibility() content.Visibility {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visibility
}

// SetVisibility selects the tag applied to subsequent posts.
func (s *Session) SetVisibility(v content.Visibility) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visibility = v
}

// SubmitPost adds a post to the current identity's feed with the selected
// visibility. Returns false when logged out or when text is blank.
func (s *Session) SubmitPost(text string) (content.Item, bool) {
	if !s.LoggedIn() {
		s.log.Debug("post ignored, not logged in")
		return content.Item{}, false
	}
	ident := s.CurrentIdentity()
	return s.cfg.Store.Add(ident.ID, text, content.Options{
		Kind:       content.KindPost,
		Author:     ident.Name,
		Visibility: s.Visibility(),
	})
}

// SendMessage adds a message to the ephemeral chat. Returns false when logged
// out or when text is blank.
func (s *Session) SendMessage(text string) (content.Item, bool) {
	if !s.LoggedIn() {
		s.log.Debug("message ignored, not logged in")
		return content.Item{}, false
	}
	return s.cfg.Store.Add(store.ChatKey, text, content.Options{Kind: content.KindChat})
}

// Feed returns the current identity's posts, newest first.
func (s *Session) Feed() []content.Item {
	return s.cfg.Store.List(s.CurrentIdentity().ID)
}

// Chat returns the chat messages oldest first, the order they are read in.
func (s *Session) Chat() []content.Item {
	items := s.cfg.Store.List(store.ChatKey)
	slices.Reverse(items)
	return items
}
