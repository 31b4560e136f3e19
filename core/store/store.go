// Package store provides the ephemeral content store.
//
// The Store holds keyed collections of items: one feed per identity id and
// a single chat collection under ChatKey. The newest item is always at the
// head of its collection. Items marked ephemeral (every chat message, and
// posts tagged Ephemeral) are removed exactly once after their expiry delay
// by the expiry pass, which is driven either by Start or by calling ExpireDue
// directly.
//
// All state is guarded by a single mutex, so Add, Remove, List and expiry
// passes run in mutual exclusion. Change callbacks are invoked outside the
// lock.
package store

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kabili207/prisma-go/core/clock"
	"github.com/kabili207/prisma-go/core/content"
	"github.com/kabili207/prisma-go/core/expiry"
)

const (
	// ChatKey is the collection key of the shared chat.
	ChatKey = "chat"

	// DefaultPostExpiry is the delay before an ephemeral post is removed.
	DefaultPostExpiry = 10 * time.Second

	// DefaultChatExpiry is the delay before a chat message is removed.
	DefaultChatExpiry = 5 * time.Second
)

// EventType classifies a store change.
type EventType int

const (
	// EventAdded is fired after an item is inserted.
	EventAdded EventType = iota
	// EventRemoved is fired after an explicit Remove.
	EventRemoved
	// EventExpired is fired after an expiry pass removes an item.
	EventExpired
)

func (e EventType) String() string {
	switch e {
	case EventAdded:
		return "added"
	case EventRemoved:
		return "removed"
	case EventExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Event describes one change to a collection.
type Event struct {
	Type EventType
	Key  string
	Item content.Item
}

// Config configures a Store.
type Config struct {
	// Clock supplies creation times and item ids. Defaults to clock.New().
	Clock *clock.Clock

	// PostExpiry is the default delay for ephemeral posts.
	// Default: 10 seconds.
	PostExpiry time.Duration

	// ChatExpiry is the default delay for chat messages.
	// Default: 5 seconds.
	ChatExpiry time.Duration

	// OnChange is called after every add, remove and expiry. May be nil.
	OnChange func(Event)

	// Logger for store events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Store owns every collection and the pending expiries.
type Store struct {
	cfg Config
	log *slog.Logger
	mu  sync.Mutex

	// stop is closed by Stop. It exists from New so that a Stop racing
	// ahead of Start is not lost.
	stop     chan struct{}
	stopOnce sync.Once

	collections map[string][]content.Item // head-first
	expiries    *expiry.Queue

	// wake re-arms the Start loop when an earlier expiry is scheduled.
	wake chan struct{}
}

// New creates an empty store.
func New(cfg Config) *Store {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.PostExpiry <= 0 {
		cfg.PostExpiry = DefaultPostExpiry
	}
	if cfg.ChatExpiry <= 0 {
		cfg.ChatExpiry = DefaultChatExpiry
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		cfg:         cfg,
		log:         logger.WithGroup("store"),
		collections: make(map[string][]content.Item),
		expiries:    expiry.NewQueue(),
		wake:        make(chan struct{}, 1),
		stop:        make(chan struct{}),
	}
}

// SetOnChange replaces the change callback. Typically called after
// construction by the component presenting the store.
func (s *Store) SetOnChange(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.OnChange = fn
}

// PostExpiry returns the default delay for ephemeral posts.
func (s *Store) PostExpiry() time.Duration { return s.cfg.PostExpiry }

// ChatExpiry returns the default delay for chat messages.
func (s *Store) ChatExpiry() time.Duration { return s.cfg.ChatExpiry }

// Add creates an item from text and inserts it at the head of the collection
// named by key, creating the collection if needed. Ephemeral items get their
// expiry scheduled. Blank text is ignored: Add returns false and the store is
// unchanged.
func (s *Store) Add(key, text string, opts content.Options) (content.Item, bool) {
	if content.IsBlank(text) {
		s.log.Debug("ignoring blank content", "key", key, "kind", opts.Kind)
		return content.Item{}, false
	}

	// The id is taken under the lock so head order matches id order.
	s.mu.Lock()
	now := s.cfg.Clock.Now()
	item := content.Item{
		ID:        strconv.FormatInt(s.cfg.Clock.UniqueMillis(), 10),
		Kind:      opts.Kind,
		Content:   text,
		CreatedAt: now,
	}
	switch opts.Kind {
	case content.KindChat:
		item.Visibility = content.Ephemeral
	default:
		item.Author = opts.Author
		item.Visibility = opts.Visibility
	}
	if opts.IsEphemeral() {
		item.ExpiresAt = now.Add(s.expiryDelay(opts))
	}
	s.collections[key] = slices.Insert(s.collections[key], 0, item)
	if item.Expires() {
		s.expiries.Schedule(key, item.ID, item.ExpiresAt)
	}
	fn := s.cfg.OnChange
	s.mu.Unlock()

	if item.Expires() {
		s.kick()
	}
	s.log.Debug("item added",
		"key", key,
		"id", item.ID,
		"kind", item.Kind,
		"visibility", item.Visibility)

	if fn != nil {
		fn(Event{Type: EventAdded, Key: key, Item: item})
	}
	return item, true
}

// ScheduleExpiry arranges for the item to be removed once delay has elapsed,
// if it still exists at that point. A pending expiry for the same item is
// replaced. Scheduling for an item that is not (or no longer) present is
// allowed; the expiry then does nothing when it fires.
func (s *Store) ScheduleExpiry(key, itemID string, delay time.Duration) expiry.Handle {
	at := s.cfg.Clock.Now().Add(delay)

	s.mu.Lock()
	h := s.expiries.Schedule(key, itemID, at)
	if i := indexOf(s.collections[key], itemID); i >= 0 {
		s.collections[key][i].ExpiresAt = at
	}
	s.mu.Unlock()

	s.kick()
	return h
}

// CancelExpiry cancels a pending expiry. The item, if present, stays in its
// collection but keeps its previous ExpiresAt for display.
func (s *Store) CancelExpiry(h expiry.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiries.Cancel(h)
}

// Remove deletes an item and cancels its pending expiry. Returns false if the
// item was not present; calling it again is harmless.
func (s *Store) Remove(key, itemID string) bool {
	s.mu.Lock()
	item, ok := s.removeLocked(key, itemID)
	s.expiries.CancelItem(key, itemID)
	fn := s.cfg.OnChange
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.log.Debug("item removed", "key", key, "id", itemID)
	if fn != nil {
		fn(Event{Type: EventRemoved, Key: key, Item: item})
	}
	return true
}

// List returns a copy of the collection, newest first.
func (s *Store) List(key string) []content.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.collections[key])
}

// Len returns the number of items in the collection.
func (s *Store) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collections[key])
}

// Keys returns the keys of every collection created so far, sorted.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.collections))
	for k := range s.collections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PendingExpiries returns the number of scheduled expiries.
func (s *Store) PendingExpiries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiries.Len()
}

// ExpireDue runs one expiry pass: every scheduled expiry due at or before now
// fires, removing its item if still present. Returns the number of items
// removed.
func (s *Store) ExpireDue(now time.Time) int {
	s.mu.Lock()
	due := s.expiries.PopDue(now)
	var expired []Event
	for _, e := range due {
		item, ok := s.removeLocked(e.Key, e.ItemID)
		if !ok {
			s.log.Debug("expiry skipped, item already gone", "key", e.Key, "id", e.ItemID)
			continue
		}
		expired = append(expired, Event{Type: EventExpired, Key: e.Key, Item: item})
	}
	fn := s.cfg.OnChange
	s.mu.Unlock()

	for _, ev := range expired {
		s.log.Debug("item expired", "key", ev.Key, "id", ev.Item.ID)
		if fn != nil {
			fn(ev)
		}
	}
	return len(expired)
}

// Start runs the expiry loop. It blocks until the context is cancelled or
// Stop is called, and returns at once if Stop already was. Typically called
// in a goroutine:
//
//	go store.Start(ctx)
func (s *Store) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		default:
		}

		s.ExpireDue(s.cfg.Clock.Now())

		var timer *time.Timer
		var fire <-chan time.Time
		if wait, ok := s.nextWait(); ok {
			timer = time.NewTimer(wait)
			fire = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.wake:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// Stop ends the expiry loop. A stopped store cannot be restarted; further
// calls do nothing.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// nextWait returns the time until the earliest pending expiry.
func (s *Store) nextWait() (time.Duration, bool) {
	s.mu.Lock()
	next, ok := s.expiries.Next()
	s.mu.Unlock()
	if !ok {
		return 0, false
	}
	return max(next.Sub(s.cfg.Clock.Now()), 0), true
}

// kick wakes the expiry loop without blocking.
func (s *Store) kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Store) expiryDelay(opts content.Options) time.Duration {
	if opts.ExpiryDelay > 0 {
		return opts.ExpiryDelay
	}
	if opts.Kind == content.KindChat {
		return s.cfg.ChatExpiry
	}
	return s.cfg.PostExpiry
}

// removeLocked deletes an item, preserving the order of the rest.
// Must be called with s.mu held.
func (s *Store) removeLocked(key, itemID string) (content.Item, bool) {
	items := s.collections[key]
	i := indexOf(items, itemID)
	if i < 0 {
		return content.Item{}, false
	}
	item := items[i]
	s.collections[key] = slices.Delete(items, i, i+1)
	return item, true
}

func indexOf(items []content.Item, id string) int {
	return slices.IndexFunc(items, func(it content.Item) bool { return it.ID == id })
}
