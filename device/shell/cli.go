package shell

import (
	"fmt"
	"strings"
	"time"

	"github.com/kabili207/prisma-go/core/content"
)

const helpText = "login <name> | logout | whoami | switch | identity [id] | vis [label] | " +
	"post <text> | chat <text> | feed | msgs | clock | ver | get <key> | help"

// Execute runs one command line and returns the reply text. An empty reply
// means the command produced no output. Commands that change the session
// publish a snapshot to remote terminals.
func (s *Shell) Execute(line string) string {
	reply, changed := s.executeCLI(line)
	if changed {
		s.PublishSnapshot()
	}
	return reply
}

// executeCLI dispatches a command line. changed reports a session state
// change that store notifications do not cover.
func (s *Shell) executeCLI(line string) (reply string, changed bool) {
	verb, rest := splitCommand(line)
	if verb == "" {
		return "", false
	}

	switch verb {
	case "login":
		return s.cliLogin(rest)
	case "logout":
		s.cfg.Session.Logout()
		return "OK", true
	case "whoami":
		return s.cliWhoami(), false
	case "switch":
		id := s.cfg.Session.SwitchIdentity()
		return fmt.Sprintf("%s %s %s", id.ID, id.Name, id.Color), true
	case "identity":
		return s.cliIdentity(strings.TrimSpace(rest))
	case "vis":
		return s.cliVis(strings.TrimSpace(rest))
	case "post":
		return s.cliPost(rest), false
	case "chat":
		return s.cliChat(rest), false
	case "feed":
		return s.cliFeed(), false
	case "msgs":
		return s.cliMsgs(), false
	case "clock":
		return s.cliClock(), false
	case "ver":
		return s.cfg.Version, false
	case "get":
		key := strings.TrimSpace(rest)
		if key == "" {
			return "??: (missing key)", false
		}
		return s.cliGet(key), false
	case "help":
		return helpText, false
	default:
		return "Unknown command", false
	}
}

// splitCommand separates the command word from its argument text. The
// argument is returned as typed, apart from the single separating space.
func splitCommand(line string) (verb, rest string) {
	line = strings.TrimLeft(strings.TrimRight(line, "\r\n"), " \t")
	verb, rest, _ = strings.Cut(line, " ")
	return strings.ToLower(strings.TrimSpace(verb)), rest
}

func (s *Shell) cliLogin(name string) (string, bool) {
	if !s.cfg.Session.Login(name) {
		return "Error: username required", false
	}
	s.newSession()
	return "OK", true
}

func (s *Shell) cliWhoami() string {
	sess := s.cfg.Session
	if !sess.LoggedIn() {
		return "not logged in"
	}
	id := sess.CurrentIdentity()
	return fmt.Sprintf("%s as %s (%s)", sess.Username(), id.Name, sess.Visibility().Label())
}

func (s *Shell) cliIdentity(id string) (string, bool) {
	sess := s.cfg.Session
	if id == "" {
		current := sess.CurrentIdentity()
		var b strings.Builder
		for i, ident := range sess.Identities() {
			if i > 0 {
				b.WriteByte('\n')
			}
			marker := " "
			if ident.ID == current.ID {
				marker = "*"
			}
			fmt.Fprintf(&b, "%s %s %s %s", marker, ident.ID, ident.Name, ident.Color)
		}
		return b.String(), false
	}
	if !sess.SelectIdentity(id) {
		return "Error: unknown identity " + id, false
	}
	return "OK", true
}

func (s *Shell) cliVis(label string) (string, bool) {
	if label == "" {
		return s.cfg.Session.Visibility().Label(), false
	}
	v, err := content.ParseVisibility(label)
	if err != nil {
		return "Error: " + err.Error(), false
	}
	s.cfg.Session.SetVisibility(v)
	return "OK", true
}

func (s *Shell) cliPost(text string) string {
	if !s.cfg.Session.LoggedIn() {
		return "Error: not logged in"
	}
	item, ok := s.cfg.Session.SubmitPost(text)
	if !ok {
		return ""
	}
	return "OK " + item.ID
}

func (s *Shell) cliChat(text string) string {
	if !s.cfg.Session.LoggedIn() {
		return "Error: not logged in"
	}
	item, ok := s.cfg.Session.SendMessage(text)
	if !ok {
		return ""
	}
	return "OK " + item.ID
}

func (s *Shell) cliFeed() string {
	if !s.cfg.Session.LoggedIn() {
		return "Error: not logged in"
	}
	items := s.cfg.Session.Feed()
	if len(items) == 0 {
		return "(empty)"
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%s [%s] %s: %s", it.ID, it.Visibility.Label(), it.Author, it.Content)
	}
	return strings.Join(lines, "\n")
}

func (s *Shell) cliMsgs() string {
	if !s.cfg.Session.LoggedIn() {
		return "Error: not logged in"
	}
	items := s.cfg.Session.Chat()
	if len(items) == 0 {
		return "(empty)"
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%s %s", it.ID, it.Content)
	}
	return strings.Join(lines, "\n")
}

// cliClock returns the current time as "HH:MM:SS - DD/MM/YYYY UTC".
func (s *Shell) cliClock() string {
	t := s.cfg.Clock.Now().UTC()
	return fmt.Sprintf("%02d:%02d:%02d - %02d/%02d/%04d UTC",
		t.Hour(), t.Minute(), t.Second(), t.Day(), t.Month(), t.Year())
}

func (s *Shell) cliGet(key string) string {
	st := s.cfg.Session.Store()
	switch key {
	case "name":
		return s.cfg.Name
	case "public.key":
		if s.cfg.KeyPair == nil {
			return "(none)"
		}
		id := s.cfg.KeyPair.ID()
		return fmt.Sprintf("%x", id[:])
	case "session.id":
		return s.SessionID()
	case "post.expiry":
		return st.PostExpiry().String()
	case "chat.expiry":
		return st.ChatExpiry().String()
	case "pending":
		return fmt.Sprintf("%d", st.PendingExpiries())
	case "peer":
		key, ok := s.Paired()
		if !ok {
			return "(none)"
		}
		return fmt.Sprintf("%x", key[:8])
	case "uptime":
		return s.cfg.Clock.Now().Sub(s.started).Truncate(time.Second).String()
	default:
		return "??: " + key
	}
}
