package services

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/weddingcard/server/internal/models"
)

const (
	// DefaultSwipeThreshold is the horizontal distance, in pixels, a swipe
	// must cover before it navigates
	DefaultSwipeThreshold = 50.0
	// DefaultAutoplayInterval is the delay between autoplay steps
	DefaultAutoplayInterval = 5 * time.Second
)

// KeyAction is the result of a key press
type KeyAction int

const (
	KeyActionNone KeyAction = iota
	KeyActionPrevious
	KeyActionNext
	// KeyActionClose asks the caller to close the viewer
	KeyActionClose
)

// Navigator tracks the selected item of a timeline. It is not safe for
// concurrent use; TimelineSession serializes access.
type Navigator struct {
	items          []models.TimelineItem
	selected       int
	swipeThreshold float64
}

// NewNavigator creates a Navigator with the given swipe threshold.
// A non-positive threshold uses DefaultSwipeThreshold.
func NewNavigator(swipeThreshold float64) *Navigator {
	if swipeThreshold <= 0 {
		swipeThreshold = DefaultSwipeThreshold
	}
	return &Navigator{swipeThreshold: swipeThreshold}
}

// SetItems replaces the item list. If the current selection no longer
// exists it resets to 0.
func (n *Navigator) SetItems(items []models.TimelineItem) {
	n.items = items
	if n.selected >= len(items) {
		n.selected = 0
	}
}

// Len returns the number of items
func (n *Navigator) Len() int {
	return len(n.items)
}

// Selected returns the selected index
func (n *Navigator) Selected() int {
	return n.selected
}

// Current returns the selected item, or nil when the list is empty
func (n *Navigator) Current() *models.TimelineItem {
	if len(n.items) == 0 {
		return nil
	}
	item := n.items[n.selected]
	return &item
}

// Next moves forward, wrapping from the last item to the first
func (n *Navigator) Next() int {
	if len(n.items) > 0 {
		n.selected = (n.selected + 1) % len(n.items)
	}
	return n.selected
}

// Previous moves back, wrapping from the first item to the last
func (n *Navigator) Previous() int {
	if len(n.items) > 0 {
		n.selected = (n.selected - 1 + len(n.items)) % len(n.items)
	}
	return n.selected
}

// Select selects an index directly
func (n *Navigator) Select(index int) (int, error) {
	if index < 0 || index >= len(n.items) {
		return n.selected, models.ErrIndexOutOfRange
	}
	n.selected = index
	return n.selected, nil
}

// JumpToIndex selects a member picked from inside a day cluster
func (n *Navigator) JumpToIndex(index int) (int, error) {
	return n.Select(index)
}

// JumpToDate selects the item closest in time to target. Ties go to the
// earliest index.
func (n *Navigator) JumpToDate(target time.Time) (int, error) {
	if len(n.items) == 0 {
		return 0, models.ErrEmptyTimeline
	}

	best := 0
	bestDiff := absDuration(n.items[0].EffectiveDate.Sub(target))
	for i := 1; i < len(n.items); i++ {
		diff := absDuration(n.items[i].EffectiveDate.Sub(target))
		if diff < bestDiff {
			best, bestDiff = i, diff
		}
	}

	n.selected = best
	return n.selected, nil
}

// HandleKey applies a keyboard key. Escape is not handled here; it is
// returned as KeyActionClose for the caller.
func (n *Navigator) HandleKey(key string) KeyAction {
	switch key {
	case "ArrowLeft", "Left":
		n.Previous()
		return KeyActionPrevious
	case "ArrowRight", "Right":
		n.Next()
		return KeyActionNext
	case "Escape", "Esc":
		return KeyActionClose
	}
	return KeyActionNone
}

// HandleSwipe navigates on a mostly horizontal swipe longer than the
// threshold. A leftward swipe (dx < 0) shows the next item.
func (n *Navigator) HandleSwipe(dx, dy float64) KeyAction {
	if math.Abs(dx) <= n.swipeThreshold || math.Abs(dx) <= math.Abs(dy) {
		return KeyActionNone
	}
	if dx < 0 {
		n.Next()
		return KeyActionNext
	}
	n.Previous()
	return KeyActionPrevious
}

// ScrollOffset centers the strip on a position, clamped to the scrollable
// range
func ScrollOffset(positionPercent, scrollWidth, viewportWidth float64) float64 {
	offset := positionPercent/100*scrollWidth - viewportWidth/2
	return clamp(offset, 0, scrollWidth-viewportWidth)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// Autoplay calls a step function on a fixed interval until stopped
type Autoplay struct {
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewAutoplay creates a stopped Autoplay. A non-positive interval uses
// DefaultAutoplayInterval.
func NewAutoplay(interval time.Duration) *Autoplay {
	if interval <= 0 {
		interval = DefaultAutoplayInterval
	}
	return &Autoplay{interval: interval}
}

// Start begins ticking. step is called from the autoplay goroutine; it
// decides for itself whether there is anything to advance. Calling Start
// while running does nothing.
func (a *Autoplay) Start(ctx context.Context, step func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	a.running = true

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				step()
			}
		}
	}(a.done)
}

// Stop halts ticking and waits for the goroutine to exit. Safe to call
// more than once.
func (a *Autoplay) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	cancel, done := a.cancel, a.done
	a.running = false
	a.mu.Unlock()

	cancel()
	<-done
}

// Running reports whether autoplay is active
func (a *Autoplay) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}
