package services

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// FrameInterval is one animation frame at 60 Hz
const FrameInterval = time.Second / 60

// FrameCoalescer runs scroll-driven recomputation at most once per frame.
// Calls arriving inside a frame are merged: only the latest function runs,
// at the start of the next frame.
type FrameCoalescer struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	pending func()
	timer   *time.Timer
	stopped bool
}

// NewFrameCoalescer creates a coalescer for the given frame interval.
// A non-positive interval uses FrameInterval.
func NewFrameCoalescer(interval time.Duration) *FrameCoalescer {
	if interval <= 0 {
		interval = FrameInterval
	}
	return &FrameCoalescer{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Trigger schedules fn. It runs immediately when a frame slot is free,
// otherwise it replaces whatever is waiting for the next slot.
func (c *FrameCoalescer) Trigger(fn func()) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}

	if c.timer != nil {
		c.pending = fn
		c.mu.Unlock()
		return
	}

	r := c.limiter.Reserve()
	delay := r.Delay()
	if delay == 0 {
		c.mu.Unlock()
		fn()
		return
	}

	c.pending = fn
	c.timer = time.AfterFunc(delay, c.flush)
	c.mu.Unlock()
}

func (c *FrameCoalescer) flush() {
	c.mu.Lock()
	fn := c.pending
	c.pending = nil
	c.timer = nil
	stopped := c.stopped
	c.mu.Unlock()

	if fn != nil && !stopped {
		fn()
	}
}

// Stop drops any pending call. Later triggers are ignored.
func (c *FrameCoalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	c.pending = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
