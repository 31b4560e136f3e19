// Package clock provides the time source shared by the content store, the
// expiry loop and the shell.
//
// Item ids are derived from creation time. UniqueMillis returns strictly
// increasing millisecond values even when called several times within the
// same millisecond, so two items created back to back never share an id.
package clock

import (
	"sync"
	"time"
)

// Clock provides current time and unique millisecond timestamps.
type Clock struct {
	mu         sync.Mutex
	lastUnique int64
	nowFn      func() time.Time // overridable for testing
}

// New creates a Clock that uses the system clock.
func New() *Clock {
	return &Clock{nowFn: time.Now}
}

// NewWithSource creates a Clock backed by an arbitrary time source. Tests in
// other packages use it to drive expiry deterministically.
func NewWithSource(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{nowFn: now}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowFn()
}

// NowMillis returns the current UNIX time in milliseconds.
func (c *Clock) NowMillis() int64 {
	return c.Now().UnixMilli()
}

// SetCurrentTime re-bases the clock at t. Subsequent calls advance from t by
// the wall-clock time elapsed since the call.
func (c *Clock) SetCurrentTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	base := time.Now()
	c.nowFn = func() time.Time {
		return t.Add(time.Since(base))
	}
}

// UniqueMillis returns a strictly increasing millisecond timestamp.
// If the clock hasn't advanced past the last returned value (or went
// backwards), the last value is bumped by one.
func (c *Clock) UniqueMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.nowFn().UnixMilli()
	if t <= c.lastUnique {
		c.lastUnique++
		return c.lastUnique
	}
	c.lastUnique = t
	return t
}
