// Package beacon periodically announces a shell on its transports so remote
// terminals can discover it.
package beacon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kabili207/prisma-go/core/codec"
)

const (
	// DefaultInterval is the default announce interval.
	DefaultInterval = 2 * time.Minute

	// tickInterval is the resolution of the beacon's timer check loop.
	tickInterval = time.Second
)

// Sender signs and transmits a frame. device/shell.Shell implements it.
type Sender interface {
	SendFrame(frameType codec.FrameType, payload []byte) error
}

// Config configures a Beacon.
type Config struct {
	// Name is announced as the frame payload.
	Name string

	// Interval between announces. Zero disables periodic announces; SendNow
	// still works.
	Interval time.Duration

	// Logger for beacon events. Falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Beacon sends an announce frame every Interval.
type Beacon struct {
	cfg    Config
	log    *slog.Logger
	sender Sender

	mu   sync.Mutex
	next time.Time
	sent int

	// stop is closed by Stop; created in New so an early Stop is kept.
	stop     chan struct{}
	stopOnce sync.Once

	// nowFn allows overriding time.Now() for testing.
	nowFn func() time.Time
}

// New creates a beacon sending through sender.
func New(sender Sender, cfg Config) *Beacon {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Beacon{
		cfg:    cfg,
		log:    logger.WithGroup("beacon"),
		sender: sender,
		stop:   make(chan struct{}),
		nowFn:  time.Now,
	}
}

// Start announces once, then periodically until the context is cancelled or
// Stop is called. If Stop already was, it returns without announcing. It
// blocks; typically called in a goroutine:
//
//	go b.Start(ctx)
func (b *Beacon) Start(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-b.stop:
		return
	default:
	}

	b.SendNow()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stop:
			return
		case <-ticker.C:
			b.checkTimer()
		}
	}
}

// Stop ends the announce loop. A stopped beacon cannot be restarted.
func (b *Beacon) Stop() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// SendNow announces immediately and restarts the interval.
func (b *Beacon) SendNow() {
	if err := b.sender.SendFrame(codec.FrameAnnounce, []byte(b.cfg.Name)); err != nil {
		b.log.Warn("failed to send announce", "error", err)
	} else {
		b.log.Debug("sent announce", "name", b.cfg.Name)
	}

	b.mu.Lock()
	b.sent++
	b.resetTimerLocked()
	b.mu.Unlock()
}

// SetInterval changes the announce interval. Zero disables periodic
// announces.
func (b *Beacon) SetInterval(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.Interval = d
	b.resetTimerLocked()
}

// Sent returns the number of announces attempted.
func (b *Beacon) Sent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent
}

func (b *Beacon) checkTimer() {
	b.mu.Lock()
	due := !b.next.IsZero() && !b.nowFn().Before(b.next)
	b.mu.Unlock()

	if due {
		b.SendNow()
	}
}

// resetTimerLocked sets the next announce time. Must be called with b.mu held.
func (b *Beacon) resetTimerLocked() {
	if b.cfg.Interval > 0 {
		b.next = b.nowFn().Add(b.cfg.Interval)
	} else {
		b.next = time.Time{}
	}
}
