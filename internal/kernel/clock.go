package kernel

import (
	"sync"
	"time"
)

// Clock provides a controllable notion of time for the deterministic
// simulation. The kernel is the only component permitted to advance it;
// every other component reads Now().
type Clock interface {
	Now() time.Time
	AdvanceTo(t time.Time)
}

// VirtualClock is the in-memory clock driving a single backtest run. It
// never moves backward: AdvanceTo silently ignores a timestamp at or
// before the current time, and the kernel's own dispatch loop never
// requests one (the monotonic-time invariant is enforced by construction,
// not by this guard alone).
type VirtualClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewVirtualClock constructs a clock starting at start.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{current: start}
}

// Now returns the current simulated time.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// AdvanceTo moves the clock forward to t, if t is later than the current
// time.
func (c *VirtualClock) AdvanceTo(t time.Time) {
	c.mu.Lock()
	if t.After(c.current) {
		c.current = t
	}
	c.mu.Unlock()
}
