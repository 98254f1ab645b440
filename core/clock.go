package core

import (
	"sync/atomic"
	"time"
)

// Clock supplies the logical block height observed by ledger operations.
type Clock interface {
	Height() uint64
}

// ManualClock is advanced explicitly. It is used by tests and by embedders
// that drive heights from their own block source.
type ManualClock struct {
	height atomic.Uint64
}

// NewManualClock returns a clock starting at height.
func NewManualClock(height uint64) *ManualClock {
	c := &ManualClock{}
	c.height.Store(height)
	return c
}

// Height implements Clock.
func (c *ManualClock) Height() uint64 { return c.height.Load() }

// Set moves the clock to height. Moving backwards is ignored.
func (c *ManualClock) Set(height uint64) {
	for {
		current := c.height.Load()
		if height <= current || c.height.CompareAndSwap(current, height) {
			return
		}
	}
}

// Advance moves the clock forward by n blocks and returns the new height.
func (c *ManualClock) Advance(n uint64) uint64 { return c.height.Add(n) }

// BlockClock derives the height from wall time: one block per interval since
// the clock started, offset by the starting height.
type BlockClock struct {
	start    time.Time
	base     uint64
	interval time.Duration
	now      func() time.Time
}

// NewBlockClock creates a clock that reports base at construction time and
// advances once per interval.
func NewBlockClock(base uint64, interval time.Duration) *BlockClock {
	if interval <= 0 {
		interval = time.Second
	}
	return &BlockClock{start: time.Now(), base: base, interval: interval, now: time.Now}
}

// Height implements Clock.
func (c *BlockClock) Height() uint64 {
	elapsed := c.now().Sub(c.start)
	if elapsed < 0 {
		return c.base
	}
	return c.base + uint64(elapsed/c.interval)
}
