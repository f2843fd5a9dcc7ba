/*
 * Copyright (c) 2020. Ant Group. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package coverage

import "sync"

// Counters holds the campaign-wide coverage metric. Hit is monotonic across
// the whole campaign (it is never reset between runs); TotalOriginal is
// fixed once at bootstrap so Percent stays stable as breakpoints are
// consumed out of the live table run after run.
type Counters struct {
	mu            sync.Mutex
	hit           int
	totalOriginal int
}

// NewCounters returns counters for a campaign with the given bootstrap size.
func NewCounters(totalOriginal int) *Counters {
	return &Counters{totalOriginal: totalOriginal}
}

// IncrementHit records one more consumed breakpoint and returns the updated
// hit count and percentage.
func (c *Counters) IncrementHit() (hit int, percent float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hit++
	return c.hit, c.percentLocked()
}

// Snapshot returns the current hit count, bootstrap total, and percentage.
func (c *Counters) Snapshot() (hit, totalOriginal int, percent float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hit, c.totalOriginal, c.percentLocked()
}

func (c *Counters) percentLocked() float64 {
	if c.totalOriginal == 0 {
		return 0
	}
	return 100 * float64(c.hit) / float64(c.totalOriginal)
}
