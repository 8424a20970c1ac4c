package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weddingcard/server/internal/models"
)

func navItems(n int) []models.TimelineItem {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := make([]models.TimelineItem, n)
	for i := range items {
		items[i] = datedItem(string(rune('a'+i)), base.AddDate(0, 0, i*10))
	}
	return items
}

func TestNavigator_Wrap(t *testing.T) {
	nav := NewNavigator(0)
	nav.SetItems(navItems(3))

	t.Run("next wraps to the first item", func(t *testing.T) {
		_, err := nav.Select(2)
		require.NoError(t, err)
		assert.Equal(t, 0, nav.Next())
	})

	t.Run("previous wraps to the last item", func(t *testing.T) {
		_, err := nav.Select(0)
		require.NoError(t, err)
		assert.Equal(t, 2, nav.Previous())
	})

	t.Run("n steps return to the start", func(t *testing.T) {
		_, err := nav.Select(1)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			nav.Next()
		}
		assert.Equal(t, 1, nav.Selected())
		for i := 0; i < 3; i++ {
			nav.Previous()
		}
		assert.Equal(t, 1, nav.Selected())
	})
}

func TestNavigator_Empty(t *testing.T) {
	nav := NewNavigator(0)

	assert.Nil(t, nav.Current())
	assert.Equal(t, 0, nav.Next())
	assert.Equal(t, 0, nav.Previous())

	_, err := nav.JumpToDate(time.Now())
	assert.ErrorIs(t, err, models.ErrEmptyTimeline)

	_, err = nav.Select(0)
	assert.ErrorIs(t, err, models.ErrIndexOutOfRange)
}

func TestNavigator_SetItems(t *testing.T) {
	t.Run("selection resets when the list shrinks below it", func(t *testing.T) {
		nav := NewNavigator(0)
		nav.SetItems(navItems(5))
		_, err := nav.Select(4)
		require.NoError(t, err)

		nav.SetItems(navItems(2))
		assert.Equal(t, 0, nav.Selected())
		require.NotNil(t, nav.Current())
		assert.Equal(t, "a", nav.Current().ID)
	})

	t.Run("selection kept while still valid", func(t *testing.T) {
		nav := NewNavigator(0)
		nav.SetItems(navItems(5))
		_, err := nav.Select(1)
		require.NoError(t, err)

		nav.SetItems(navItems(3))
		assert.Equal(t, 1, nav.Selected())
	})

	t.Run("emptied list", func(t *testing.T) {
		nav := NewNavigator(0)
		nav.SetItems(navItems(3))
		_, _ = nav.Select(2)

		nav.SetItems(nil)
		assert.Equal(t, 0, nav.Selected())
		assert.Nil(t, nav.Current())
	})
}

func TestNavigator_Select(t *testing.T) {
	nav := NewNavigator(0)
	nav.SetItems(navItems(3))

	idx, err := nav.JumpToIndex(2)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	idx, err = nav.Select(3)
	assert.ErrorIs(t, err, models.ErrIndexOutOfRange)
	assert.Equal(t, 2, idx)

	_, err = nav.Select(-1)
	assert.ErrorIs(t, err, models.ErrIndexOutOfRange)
	assert.Equal(t, 2, nav.Selected())
}

func TestNavigator_JumpToDate(t *testing.T) {
	nav := NewNavigator(0)
	items := navItems(4) // Jan 1, 11, 21, 31
	nav.SetItems(items)

	t.Run("nearest item", func(t *testing.T) {
		idx, err := nav.JumpToDate(time.Date(2024, 1, 19, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 2, idx)
	})

	t.Run("before every item", func(t *testing.T) {
		idx, err := nav.JumpToDate(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
	})

	t.Run("after every item", func(t *testing.T) {
		idx, err := nav.JumpToDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 3, idx)
	})

	t.Run("tie goes to the earlier item", func(t *testing.T) {
		idx, err := nav.JumpToDate(time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
	})
}

func TestNavigator_HandleKey(t *testing.T) {
	nav := NewNavigator(0)
	nav.SetItems(navItems(3))

	tests := []struct {
		key      string
		action   KeyAction
		selected int
	}{
		{"ArrowRight", KeyActionNext, 1},
		{"Right", KeyActionNext, 2},
		{"ArrowLeft", KeyActionPrevious, 1},
		{"Left", KeyActionPrevious, 0},
		{"ArrowLeft", KeyActionPrevious, 2},
		{"Escape", KeyActionClose, 2},
		{"Esc", KeyActionClose, 2},
		{"Enter", KeyActionNone, 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.action, nav.HandleKey(tt.key), tt.key)
		assert.Equal(t, tt.selected, nav.Selected(), tt.key)
	}
}

func TestNavigator_HandleSwipe(t *testing.T) {
	tests := []struct {
		name     string
		dx, dy   float64
		action   KeyAction
		selected int
	}{
		{"left swipe shows next", -80, 5, KeyActionNext, 2},
		{"right swipe shows previous", 80, -5, KeyActionPrevious, 0},
		{"at the threshold does nothing", -50, 0, KeyActionNone, 1},
		{"short swipe does nothing", 30, 0, KeyActionNone, 1},
		{"mostly vertical does nothing", -80, 120, KeyActionNone, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav := NewNavigator(DefaultSwipeThreshold)
			nav.SetItems(navItems(3))
			_, err := nav.Select(1)
			require.NoError(t, err)

			assert.Equal(t, tt.action, nav.HandleSwipe(tt.dx, tt.dy))
			assert.Equal(t, tt.selected, nav.Selected())
		})
	}
}

func TestScrollOffset(t *testing.T) {
	t.Run("centers the position", func(t *testing.T) {
		assert.Equal(t, 750.0, ScrollOffset(50, 2000, 500))
	})

	t.Run("clamped at the start", func(t *testing.T) {
		assert.Equal(t, 0.0, ScrollOffset(2, 2000, 500))
	})

	t.Run("clamped at the end", func(t *testing.T) {
		assert.Equal(t, 1500.0, ScrollOffset(99, 2000, 500))
	})

	t.Run("strip narrower than viewport", func(t *testing.T) {
		assert.Equal(t, 0.0, ScrollOffset(50, 300, 500))
	})
}

func TestAutoplay(t *testing.T) {
	t.Run("steps on every interval until stopped", func(t *testing.T) {
		var steps atomic.Int32
		a := NewAutoplay(10 * time.Millisecond)

		a.Start(context.Background(), func() { steps.Add(1) })
		assert.True(t, a.Running())

		assert.Eventually(t, func() bool { return steps.Load() >= 3 }, time.Second, 5*time.Millisecond)

		a.Stop()
		assert.False(t, a.Running())
		stopped := steps.Load()
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, stopped, steps.Load())
	})

	t.Run("start twice runs one ticker", func(t *testing.T) {
		var steps atomic.Int32
		a := NewAutoplay(20 * time.Millisecond)
		a.Start(context.Background(), func() { steps.Add(1) })
		a.Start(context.Background(), func() { steps.Add(100) })
		defer a.Stop()

		assert.Eventually(t, func() bool { return steps.Load() >= 2 }, time.Second, 5*time.Millisecond)
		assert.Less(t, steps.Load(), int32(100))
	})

	t.Run("stops with its context", func(t *testing.T) {
		var steps atomic.Int32
		ctx, cancel := context.WithCancel(context.Background())
		a := NewAutoplay(10 * time.Millisecond)
		a.Start(ctx, func() { steps.Add(1) })

		assert.Eventually(t, func() bool { return steps.Load() >= 1 }, time.Second, 5*time.Millisecond)
		cancel()
		time.Sleep(30 * time.Millisecond)
		stopped := steps.Load()
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, stopped, steps.Load())

		a.Stop()
	})

	t.Run("stop without start", func(t *testing.T) {
		a := NewAutoplay(0)
		a.Stop()
		assert.False(t, a.Running())
	})
}
