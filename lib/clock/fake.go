// Copyright 2026 The Chatrelay Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock pinned to initial. Time stands still until
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a deterministic Clock for tests. Timers and tickers
// fire only when Advance moves the clock past their deadline, in
// deadline order. AfterFunc callbacks run synchronously inside
// Advance; do not call Advance from within a callback.
//
// FakeClock is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

// fakeWaiter is one pending timer or ticker.
type fakeWaiter struct {
	deadline time.Time

	// channel receives the fire time for After and Ticker waiters.
	// Nil for AfterFunc waiters.
	channel chan time.Time

	// callback is invoked during Advance for AfterFunc waiters.
	callback func()

	// interval is non-zero for tickers; the waiter is rescheduled at
	// deadline + interval after each fire.
	interval time.Duration

	stopped bool
	fired   bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives once the clock advances past
// d from now. If d <= 0 it receives immediately.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.waiters = append(c.waiters, &fakeWaiter{
		deadline: c.current.Add(d),
		channel:  channel,
	})
	return channel
}

// AfterFunc schedules f to run when the clock advances past d. If
// d <= 0, f runs synchronously before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()

	waiter := &fakeWaiter{
		deadline: c.current.Add(d),
		callback: f,
	}
	c.waiters = append(c.waiters, waiter)

	timer := &Timer{
		stopFunc: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			active := !waiter.fired && !waiter.stopped
			waiter.stopped = true
			return active
		},
		resetFunc: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			active := !waiter.fired && !waiter.stopped
			waiter.deadline = c.current.Add(d)
			waiter.fired = false
			waiter.stopped = false
			return active
		},
	}

	if d <= 0 {
		waiter.fired = true
		c.mu.Unlock()
		f()
		return timer
	}
	c.mu.Unlock()
	return timer
}

// NewTicker returns a Ticker firing every d fake-clock units.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	waiter := &fakeWaiter{
		deadline: c.current.Add(d),
		channel:  channel,
		interval: d,
	}
	c.waiters = append(c.waiters, waiter)

	return &Ticker{
		C: channel,
		stopFunc: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			waiter.stopped = true
		},
	}
}

// Advance moves the clock forward by d, firing every timer and ticker
// whose deadline falls within the window, in deadline order. Tickers
// reschedule themselves; one-shot waiters fire at most once.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)

	for {
		waiter := c.nextDueLocked(target)
		if waiter == nil {
			break
		}

		if waiter.deadline.After(c.current) {
			c.current = waiter.deadline
		}

		if waiter.interval > 0 {
			waiter.deadline = waiter.deadline.Add(waiter.interval)
		} else {
			waiter.fired = true
		}

		if waiter.channel != nil {
			// Capacity-1 channel: drop the tick if the consumer has
			// not drained the previous one, matching time.Ticker.
			select {
			case waiter.channel <- c.current:
			default:
			}
			continue
		}

		// Run AfterFunc callbacks without holding the lock so they
		// can schedule new timers.
		callback := waiter.callback
		c.mu.Unlock()
		callback()
		c.mu.Lock()
	}

	c.current = target
	c.compactLocked()
	c.mu.Unlock()
}

// nextDueLocked returns the unstopped, unfired waiter with the
// earliest deadline at or before target, or nil.
func (c *FakeClock) nextDueLocked(target time.Time) *fakeWaiter {
	var due *fakeWaiter
	for _, waiter := range c.waiters {
		if waiter.stopped || waiter.fired {
			continue
		}
		if waiter.deadline.After(target) {
			continue
		}
		if due == nil || waiter.deadline.Before(due.deadline) {
			due = waiter
		}
	}
	return due
}

// compactLocked drops spent waiters so long-running tests do not
// accumulate garbage.
func (c *FakeClock) compactLocked() {
	live := c.waiters[:0]
	for _, waiter := range c.waiters {
		if waiter.stopped || waiter.fired {
			continue
		}
		live = append(live, waiter)
	}
	c.waiters = live
}
