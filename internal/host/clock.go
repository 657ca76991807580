package host

import "sync/atomic"

// VirtualClock is the simulation's time source. The event loop sets it to
// each event's timestamp, so every policy hook observes the simulated "now".
// It satisfies policy.Clock.
type VirtualClock struct {
	now atomic.Uint64
}

// NewVirtualClock starts at t=1ns so that a freshly started simulation never
// reports the "timestamp unavailable" zero.
func NewVirtualClock() *VirtualClock {
	c := &VirtualClock{}
	c.now.Store(1)
	return c
}

// Now returns the current simulated time in nanoseconds.
func (c *VirtualClock) Now() uint64 {
	return c.now.Load()
}

// Set moves the clock forward to t. Moving backwards is ignored; simulated
// time is monotonic.
func (c *VirtualClock) Set(t uint64) {
	for {
		cur := c.now.Load()
		if t <= cur {
			return
		}
		if c.now.CompareAndSwap(cur, t) {
			return
		}
	}
}
