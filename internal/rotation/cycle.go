package rotation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/marquee/internal/clock"
)

// CycleClock tracks the time budget for one pass through all planned slides.
// Its deadline only raises a flag; the coordinator decides what to do with it.
type CycleClock struct {
	mu       sync.Mutex
	clock    clock.Clock
	perSlide time.Duration
	planned  int
	logger   *slog.Logger

	startAt  time.Time
	expired  bool
	deadline clock.Timer
	gen      uint64

	onExpire func()
}

// NewCycleClock creates a cycle clock for slides of perSlide duration
func NewCycleClock(clk clock.Clock, perSlide time.Duration, logger *slog.Logger) *CycleClock {
	if logger == nil {
		logger = slog.Default()
	}
	return &CycleClock{clock: clk, perSlide: perSlide, planned: 1, logger: logger}
}

// OnExpire sets a callback run (outside the lock) when the deadline passes
func (c *CycleClock) OnExpire(fn func()) {
	c.mu.Lock()
	c.onExpire = fn
	c.mu.Unlock()
}

// SetPlannedTotal sets the slide count of the next cycle (minimum 1)
func (c *CycleClock) SetPlannedTotal(n int) {
	c.mu.Lock()
	c.planned = max(1, n)
	c.mu.Unlock()
}

// Duration is per-slide duration times the planned total
func (c *CycleClock) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.durationLocked()
}

func (c *CycleClock) durationLocked() time.Duration {
	return c.perSlide * time.Duration(c.planned)
}

// Start begins a new cycle now and arms its deadline
func (c *CycleClock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disarmLocked()
	c.startAt = c.clock.Now()
	c.expired = false

	left := c.durationLocked() - c.clock.Now().Sub(c.startAt)
	gen := c.gen
	c.deadline = c.clock.AfterFunc(max(0, left), func() { c.fire(gen) })
	c.logger.Debug("cycle started", "duration", c.durationLocked())
}

func (c *CycleClock) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.deadline == nil {
		c.mu.Unlock()
		return
	}
	c.deadline = nil
	c.expired = true
	fn := c.onExpire
	c.mu.Unlock()

	c.logger.Debug("cycle expired")
	if fn != nil {
		fn()
	}
}

// Clear disarms the deadline and forgets the cycle
func (c *CycleClock) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disarmLocked()
	c.startAt = time.Time{}
	c.expired = false
}

func (c *CycleClock) disarmLocked() {
	c.gen++
	if c.deadline != nil {
		c.deadline.Stop()
		c.deadline = nil
	}
}

// Expired reports whether the deadline has passed
func (c *CycleClock) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// ConsumeExpired returns the expired flag and clears it
func (c *CycleClock) ConsumeExpired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.expired
	c.expired = false
	return e
}

// Due reports whether the cycle's time budget has run out. It can be true
// before the deadline callback has set the expired flag.
func (c *CycleClock) Due() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.startAt.IsZero() && c.clock.Now().Sub(c.startAt) >= c.durationLocked()
}

// StartedAt returns when the current cycle began (zero when cleared)
func (c *CycleClock) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startAt
}
