// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// FakeClock is a Clock whose time changes only when told to. It is
// safe for concurrent use.
type FakeClock struct {
	mutex   sync.Mutex
	current time.Time
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// Now returns the fake's current time.
func (c *FakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.current
}

// Advance moves the clock forward by d. Negative durations panic:
// time on a FakeClock never runs backward.
func (c *FakeClock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock: Advance called with negative duration " + d.String())
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.current = c.current.Add(d)
}

// Set jumps the clock to t, which must not be before the current time.
func (c *FakeClock) Set(t time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if t.Before(c.current) {
		panic("clock: Set would move time backward")
	}
	c.current = t
}
