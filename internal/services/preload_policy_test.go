package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weddingcard/server/internal/models"
)

func TestThumbnailURL(t *testing.T) {
	tests := []struct {
		name  string
		orig  string
		thumb string
	}{
		{"raw separators", "https://cdn.example.com/history/2024-04/a.jpg", "https://cdn.example.com/history/2024-04/thumb/a.jpg"},
		{"encoded separators", "/media/history%2F2024-04%2Fa.jpg", "/media/history%2F2024-04%2Fthumb%2Fa.jpg"},
		{"lowercase encoding", "/o/guestbook%2fb.png", "/o/guestbook%2fthumb%2fb.png"},
		{"query string kept", "https://storage.example.com/o/guestbook%2Fc.jpg?alt=media&token=x", "https://storage.example.com/o/guestbook%2Fthumb%2Fc.jpg?alt=media&token=x"},
		{"bare file name", "a.jpg", "thumb/a.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.thumb, ThumbnailURL(tt.orig))
			assert.Equal(t, tt.orig, OriginalURL(tt.thumb))
		})
	}

	t.Run("already a thumbnail", func(t *testing.T) {
		thumb := "https://cdn.example.com/history/thumb/a.jpg"
		assert.Equal(t, thumb, ThumbnailURL(thumb))
	})

	t.Run("original without thumb segment is unchanged", func(t *testing.T) {
		orig := "https://cdn.example.com/history/a.jpg"
		assert.Equal(t, orig, OriginalURL(orig))
	})

	t.Run("segment must match exactly", func(t *testing.T) {
		orig := "https://cdn.example.com/mythumb/a.jpg"
		assert.Equal(t, orig, OriginalURL(orig))
		assert.Equal(t, "https://cdn.example.com/mythumb/thumb/a.jpg", ThumbnailURL(orig))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", ThumbnailURL(""))
	})
}

func TestPreloadPlan(t *testing.T) {
	t.Run("selected first then neighbours", func(t *testing.T) {
		items := navItems(5)
		plan := PreloadPlan(items, 2)
		require.Len(t, plan, 3)

		assert.Equal(t, items[2].ID, plan[0].ItemID)
		assert.True(t, plan[0].Eager)
		assert.Equal(t, items[1].ID, plan[1].ItemID)
		assert.False(t, plan[1].Eager)
		assert.Equal(t, items[3].ID, plan[2].ItemID)
		assert.False(t, plan[2].Eager)
	})

	t.Run("neighbours wrap", func(t *testing.T) {
		items := navItems(5)
		plan := PreloadPlan(items, 0)
		require.Len(t, plan, 3)
		assert.Equal(t, items[4].ID, plan[1].ItemID)
		assert.Equal(t, items[1].ID, plan[2].ItemID)
	})

	t.Run("two items are not duplicated", func(t *testing.T) {
		plan := PreloadPlan(navItems(2), 0)
		assert.Len(t, plan, 2)
	})

	t.Run("single item", func(t *testing.T) {
		plan := PreloadPlan(navItems(1), 0)
		require.Len(t, plan, 1)
		assert.True(t, plan[0].Eager)
	})

	t.Run("targets point at originals", func(t *testing.T) {
		items := []models.TimelineItem{{ID: "x", URL: "https://cdn.example.com/history/thumb/a.jpg"}}
		plan := PreloadPlan(items, 0)
		require.Len(t, plan, 1)
		assert.Equal(t, "https://cdn.example.com/history/a.jpg", plan[0].URL)
	})

	t.Run("out of range", func(t *testing.T) {
		assert.Nil(t, PreloadPlan(navItems(3), 3))
		assert.Nil(t, PreloadPlan(nil, 0))
	})
}

func TestHTTPPreloader(t *testing.T) {
	var mu sync.Mutex
	var seen []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	p := NewHTTPPreloader(time.Second)
	p.Preload(ctx, []models.PreloadTarget{
		{ItemID: "a", URL: srv.URL + "/a.jpg", Eager: true},
		{ItemID: "b", URL: srv.URL + "/missing.jpg"},
	})
	// requests outlive the caller's context
	cancel()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"HEAD /a.jpg", "HEAD /missing.jpg"}, seen)
}

func TestLazyLoader(t *testing.T) {
	t.Run("reveals within the margin", func(t *testing.T) {
		l := NewLazyLoader(DefaultLazyMargin)
		l.Observe("near", 560, 48)
		l.Observe("far", 900, 48)
		l.Observe("visible", 100, 48)

		revealed := l.Update(0, 500)
		assert.Equal(t, []string{"near", "visible"}, revealed)
		assert.True(t, l.IsRevealed("near"))
		assert.False(t, l.IsRevealed("far"))
	})

	t.Run("zero margin falls back to the default", func(t *testing.T) {
		l := NewLazyLoader(0)
		l.Observe("near", 560, 48)
		assert.Equal(t, []string{"near"}, l.Update(0, 500))
	})

	t.Run("revealed thumbnails are reported once", func(t *testing.T) {
		l := NewLazyLoader(DefaultLazyMargin)
		l.Observe("a", 100, 48)

		assert.Equal(t, []string{"a"}, l.Update(0, 500))
		assert.Empty(t, l.Update(0, 500))

		l.Observe("a", 5000, 48)
		assert.Empty(t, l.Update(5000, 500))
		assert.True(t, l.IsRevealed("a"))
	})

	t.Run("scrolling reveals more", func(t *testing.T) {
		l := NewLazyLoader(DefaultLazyMargin)
		l.Observe("a", 1500, 48)

		assert.Empty(t, l.Update(0, 500))
		assert.Equal(t, []string{"a"}, l.Update(1000, 500))
	})

	t.Run("detach stops observing", func(t *testing.T) {
		l := NewLazyLoader(DefaultLazyMargin)
		l.Observe("a", 100, 48)
		l.Detach()

		assert.Nil(t, l.Update(0, 500))
		l.Observe("b", 100, 48)
		assert.Nil(t, l.Update(0, 500))
		assert.False(t, l.IsRevealed("a"))
	})
}
