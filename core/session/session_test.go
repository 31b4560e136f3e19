package session

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kabili207/prisma-go/core/clock"
	"github.com/kabili207/prisma-go/core/content"
	"github.com/kabili207/prisma-go/core/store"
)

var t0 = time.UnixMilli(1_700_000_000_000)

type fakeTime struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}

func newTestSession(t *testing.T) (*Session, *fakeTime) {
	t.Helper()
	ft := &fakeTime{now: t0}
	st := store.New(store.Config{Clock: clock.NewWithSource(ft.Now)})
	return New(Config{Store: st}), ft
}

func TestLogin_LogsTrimmedName(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	s := New(Config{Store: store.New(store.Config{}), Logger: logger})

	s.Login("  maria \t")
	out := buf.String()
	if !strings.Contains(out, `"user":"maria"`) {
		t.Errorf("log output %q does not carry the trimmed name", out)
	}
}

func TestLogin(t *testing.T) {
	s, _ := newTestSession(t)

	if s.LoggedIn() {
		t.Fatal("new session should be logged out")
	}
	if s.Login("   ") {
		t.Error("blank username accepted")
	}
	if s.LoggedIn() {
		t.Error("blank username passed the gate")
	}
	if !s.Login(" maria ") {
		t.Fatal("Login(maria) = false")
	}
	if s.Username() != "maria" {
		t.Errorf("Username() = %q, want maria", s.Username())
	}

	s.Logout()
	if s.LoggedIn() || s.Username() != "" {
		t.Error("Logout did not reset the gate")
	}
}

func TestSubmitRequiresLogin(t *testing.T) {
	s, _ := newTestSession(t)

	if _, ok := s.SubmitPost("hi"); ok {
		t.Error("post accepted while logged out")
	}
	if _, ok := s.SendMessage("oi"); ok {
		t.Error("message accepted while logged out")
	}
	if len(s.Feed()) != 0 || len(s.Chat()) != 0 {
		t.Error("store modified while logged out")
	}
}

func TestSubmitPost_UsesCurrentIdentityAndVisibility(t *testing.T) {
	s, _ := newTestSession(t)
	s.Login("ana")

	s.SetVisibility(content.Private)
	p, ok := s.SubmitPost("primeiro")
	if !ok {
		t.Fatal("SubmitPost failed")
	}
	if p.Author != "Pessoal" || p.Visibility != content.Private {
		t.Errorf("post = %+v", p)
	}

	s.SwitchIdentity()
	if len(s.Feed()) != 0 {
		t.Error("feed of second identity should be empty")
	}
	p2, _ := s.SubmitPost("trabalho")
	if p2.Author != "Profissional" {
		t.Errorf("author = %q, want Profissional", p2.Author)
	}

	s.SwitchIdentity()
	s.SwitchIdentity()
	feed := s.Feed()
	if len(feed) != 1 || feed[0].ID != p.ID {
		t.Errorf("back on Pessoal: feed = %+v", feed)
	}
}

func TestSwitchIdentity_Cycles(t *testing.T) {
	s, _ := newTestSession(t)
	start := s.CurrentIdentity()

	seen := []string{s.SwitchIdentity().ID, s.SwitchIdentity().ID, s.SwitchIdentity().ID}
	if seen[0] != "2" || seen[1] != "3" || seen[2] != "1" {
		t.Errorf("cycle = %v", seen)
	}
	if s.CurrentIdentity() != start {
		t.Error("three switches did not return to start")
	}
}

func TestSelectIdentity(t *testing.T) {
	s, _ := newTestSession(t)
	if !s.SelectIdentity("3") || s.CurrentIdentity().Name != "Anônimo" {
		t.Error("SelectIdentity(3) failed")
	}
	if s.SelectIdentity("nope") {
		t.Error("SelectIdentity(nope) succeeded")
	}
}

func TestEphemeralPostExpires(t *testing.T) {
	s, ft := newTestSession(t)
	s.Login("ana")
	s.SetVisibility(content.Ephemeral)
	s.SubmitPost("hi")

	st := s.Store()
	st.ExpireDue(ft.Advance(9999 * time.Millisecond))
	if len(s.Feed()) != 1 {
		t.Error("ephemeral post gone before 10s")
	}
	st.ExpireDue(ft.Advance(2 * time.Millisecond))
	if len(s.Feed()) != 0 {
		t.Error("ephemeral post still present after 10s")
	}
}

func TestChat_ChronologicalAndExpiring(t *testing.T) {
	s, ft := newTestSession(t)
	s.Login("ana")

	a, _ := s.SendMessage("oi")
	ft.Advance(time.Second)
	b, _ := s.SendMessage("tudo bem?")

	chat := s.Chat()
	if len(chat) != 2 || chat[0].ID != a.ID || chat[1].ID != b.ID {
		t.Fatalf("Chat() = %+v, want oldest first", chat)
	}

	// a expires at t0+5s; b at t0+6s.
	s.Store().ExpireDue(ft.Advance(4001 * time.Millisecond))
	chat = s.Chat()
	if len(chat) != 1 || chat[0].ID != b.ID {
		t.Errorf("after 5.001s: Chat() = %+v", chat)
	}
	s.Store().ExpireDue(ft.Advance(time.Second))
	if len(s.Chat()) != 0 {
		t.Error("chat not empty after both expiries")
	}
}

func TestChatSharedAcrossIdentities(t *testing.T) {
	s, _ := newTestSession(t)
	s.Login("ana")
	s.SendMessage("oi")
	s.SwitchIdentity()
	if len(s.Chat()) != 1 {
		t.Error("chat should not be scoped to the identity")
	}
}
