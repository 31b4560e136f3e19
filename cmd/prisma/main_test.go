package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/kabili207/prisma-go/core/session"
	"github.com/kabili207/prisma-go/core/store"
	"github.com/kabili207/prisma-go/device/shell"
)

func TestRunConsole(t *testing.T) {
	st := store.New(store.Config{})
	sh := shell.New(shell.Config{Session: session.New(session.Config{Store: st})})

	in := strings.NewReader("login ana\npost olá\nfeed\nnope\n")
	var out bytes.Buffer
	runConsole(context.Background(), sh, in, &out)

	got := out.String()
	for _, want := range []string{"OK\n", "[público] Pessoal: olá", "Unknown command"} {
		if !strings.Contains(got, want) {
			t.Errorf("console output missing %q:\n%s", want, got)
		}
	}
	if st.Len("1") != 1 {
		t.Errorf("store len = %d, want 1", st.Len("1"))
	}
}

func TestLoadKeyPair(t *testing.T) {
	seed := "9d61b19deffd5a60ba844af492ec2cc44449c5697b326919703bac031cae7f60"
	a, err := loadKeyPair(seed)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := loadKeyPair(seed)
	if a.ID() != b.ID() {
		t.Error("same seed produced different keys")
	}
	r, err := loadKeyPair("")
	if err != nil {
		t.Fatal(err)
	}
	if r.ID() == a.ID() {
		t.Error("random key equals seeded key")
	}
}
