package testutil

import (
	"cmp"
	"slices"
	"sync"
	"time"
)

// ManualTimers is a fake timer source driven by Advance.
//
// It stands in for time.AfterFunc so debounce behaviour can be tested
// without sleeping. Timers fire in deadline order on the goroutine that
// calls Advance.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualTimers struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*ManualTimer
}

// ManualTimer is one timer created by ManualTimers.AfterFunc.
type ManualTimer struct {
	owner   *ManualTimers
	at      time.Duration
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

// NewManualTimers creates a timer source at virtual time zero.
func NewManualTimers() *ManualTimers {
	return &ManualTimers{}
}

// AfterFunc schedules f to run once Advance moves past d from now.
func (c *ManualTimers) AfterFunc(d time.Duration, f func()) *ManualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &ManualTimer{owner: c, at: c.now + d, delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Stop prevents the timer from firing. Returns false if it already fired
// or was stopped.
func (t *ManualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves virtual time forward by d and fires every timer now due.
// Returns the number of timers fired.
func (c *ManualTimers) Advance(d time.Duration) int {
	c.mu.Lock()
	c.now += d
	var due []*ManualTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	slices.SortStableFunc(due, func(a, b *ManualTimer) int {
		return cmp.Compare(a.at, b.at)
	})
	for _, t := range due {
		t.f()
	}
	return len(due)
}

// Now returns the current virtual time.
func (c *ManualTimers) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Armed returns the number of timers neither fired nor stopped.
func (c *ManualTimers) Armed() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// Created returns the number of timers ever scheduled.
func (c *ManualTimers) Created() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Delays returns the requested delay of every timer, in creation order.
func (c *ManualTimers) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]time.Duration, len(c.timers))
	for i, t := range c.timers {
		out[i] = t.delay
	}
	return out
}
