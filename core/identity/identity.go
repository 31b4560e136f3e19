// Package identity holds the fixed set of presentation identities and the
// round-robin selector used to switch between them.
//
// Identities scope which feed collection is shown. They are not security
// principals.
package identity

import "sync"

// Identity is a named presentation context.
type Identity struct {
	// ID keys the identity's feed collection in the content store.
	ID string
	// Name is the display name used as a post's author label.
	Name string
	// Color is the identity bar color as a hex RGB string.
	Color string
}

// Presets is the fixed identity list, in switching order.
var Presets = []Identity{
	{ID: "1", Name: "Pessoal", Color: "#2ECC71"},
	{ID: "2", Name: "Profissional", Color: "#3498DB"},
	{ID: "3", Name: "Anônimo", Color: "#9B59B6"},
}

// NextIndex returns the index following i in a cycle of n identities.
func NextIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	return (i + 1) % n
}

// Selector tracks the current identity as an index into a fixed list.
type Selector struct {
	mu         sync.RWMutex
	identities []Identity
	current    int
}

// NewSelector creates a selector over the given identities, starting at the
// first one. An empty list selects over Presets.
func NewSelector(identities []Identity) *Selector {
	if len(identities) == 0 {
		identities = Presets
	}
	list := make([]Identity, len(identities))
	copy(list, identities)
	return &Selector{identities: list}
}

// Current returns the selected identity.
func (s *Selector) Current() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identities[s.current]
}

// Next advances to the following identity (wrapping around) and returns it.
func (s *Selector) Next() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = NextIndex(s.current, len(s.identities))
	return s.identities[s.current]
}

// Select makes the identity with the given id current. Returns false if no
// identity has that id.
func (s *Selector) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, ident := range s.identities {
		if ident.ID == id {
			s.current = i
			return true
		}
	}
	return false
}

// Lookup returns the identity with the given id.
func (s *Selector) Lookup(id string) (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ident := range s.identities {
		if ident.ID == id {
			return ident, true
		}
	}
	return Identity{}, false
}

// All returns a copy of the identity list.
func (s *Selector) All() []Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Identity, len(s.identities))
	copy(out, s.identities)
	return out
}
