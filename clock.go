// clock.go: Time sources for checkpoint decisions
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package kairos

import (
	"time"

	"github.com/agilira/go-timecache"
)

// Clock supplies the current time to the sink. Every Emit asks the
// clock once, compares the answer against the current file's
// checkpoint, and rolls over when the checkpoint has passed. Supplying
// a fake clock makes rollover behavior fully deterministic in tests.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts an ordinary function to the Clock interface.
//
//	sink, _ := kairos.NewWithConfig(&kairos.Config{
//		Template: "app-%Y-%m-%d.log",
//		Clock:    kairos.ClockFunc(time.Now),
//	})
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// CachedClock is a Clock backed by a cached wall clock with
// millisecond resolution. Reading it is much cheaper than time.Now,
// which matters when every Emit consults the clock. The cache refreshes
// in the background, so a CachedClock must be stopped when no longer
// needed.
//
// Sinks created without an explicit Clock own a CachedClock and stop
// it on Close; a CachedClock passed in via Config stays the caller's
// responsibility.
type CachedClock struct {
	cache *timecache.TimeCache
}

// NewCachedClock creates a running CachedClock.
func NewCachedClock() *CachedClock {
	return &CachedClock{cache: timecache.NewWithResolution(time.Millisecond)}
}

// Now implements Clock. The returned time may lag the wall clock by up
// to the cache resolution, which shifts a rollover by at most one
// millisecond.
func (c *CachedClock) Now() time.Time {
	return c.cache.CachedTime()
}

// Stop halts the background refresh. The clock must not be used after
// Stop.
func (c *CachedClock) Stop() {
	c.cache.Stop()
}
