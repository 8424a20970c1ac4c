package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weddingcard/server/internal/models"
)

func photo(key string, modified time.Time) models.PhotoRecord {
	return models.PhotoRecord{
		Key:          key,
		LastModified: modified,
		URL:          "https://cdn.example.com/" + key,
	}
}

func entry(id, photoURL string, created time.Time) models.GuestbookEntry {
	return models.GuestbookEntry{
		ID:        id,
		Name:      "guest " + id,
		Message:   "congratulations",
		CreatedAt: created,
		PhotoURL:  photoURL,
	}
}

func itemIDs(items []models.TimelineItem) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

func TestBuildTimelineItems(t *testing.T) {
	modified := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := BuildOptions{Location: time.UTC}

	t.Run("sorted by effective date", func(t *testing.T) {
		photos := []models.PhotoRecord{
			photo("history/2024-04/b.jpg", modified),
			photo("history/2023-06/a.jpg", modified),
			photo("history/misc/c.jpg", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)),
		}
		entries := []models.GuestbookEntry{
			entry("e1", "https://cdn.example.com/guestbook/20231225_120000-x.jpg", modified),
		}

		items := BuildTimelineItems(photos, entries, opts)
		require.Len(t, items, 4)

		for i := 1; i < len(items); i++ {
			assert.False(t, items[i].EffectiveDate.Before(items[i-1].EffectiveDate), "items out of order at %d", i)
		}
		assert.Equal(t, []string{
			"history-history/misc/c.jpg",
			"history-history/2023-06/a.jpg",
			"guestbook-e1",
			"history-history/2024-04/b.jpg",
		}, itemIDs(items))
	})

	t.Run("inferred date overrides source timestamp", func(t *testing.T) {
		items := BuildTimelineItems([]models.PhotoRecord{photo("history/2024-04/a.jpg", modified)}, nil, opts)
		require.Len(t, items, 1)

		want := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
		require.NotNil(t, items[0].InferredDate)
		assert.True(t, want.Equal(*items[0].InferredDate))
		assert.True(t, want.Equal(items[0].EffectiveDate))
	})

	t.Run("falls back to source timestamp", func(t *testing.T) {
		items := BuildTimelineItems([]models.PhotoRecord{photo("history/misc/a.jpg", modified)}, nil, opts)
		require.Len(t, items, 1)
		assert.Nil(t, items[0].InferredDate)
		assert.True(t, modified.Equal(items[0].EffectiveDate))
	})

	t.Run("guestbook entries without photos are left out", func(t *testing.T) {
		entries := []models.GuestbookEntry{
			entry("with", "https://cdn.example.com/guestbook/a.jpg", modified),
			entry("without", "", modified),
			entry("blank", "   ", modified),
		}
		items := BuildTimelineItems(nil, entries, opts)
		assert.Equal(t, []string{"guestbook-with"}, itemIDs(items))
		assert.Equal(t, models.OriginGuestbook, items[0].Origin)
		assert.Equal(t, "guest with", items[0].Name)
	})

	t.Run("duplicate ids keep the first occurrence", func(t *testing.T) {
		first := photo("history/2024-04/a.jpg", modified)
		second := first
		second.URL = "https://other.example.com/a.jpg"

		items := BuildTimelineItems([]models.PhotoRecord{first, second}, nil, opts)
		require.Len(t, items, 1)
		assert.Equal(t, first.URL, items[0].URL)
	})

	t.Run("excluded ids are dropped", func(t *testing.T) {
		photos := []models.PhotoRecord{
			photo("history/2024-04/a.jpg", modified),
			photo("history/2024-05/b.jpg", modified),
		}
		items := BuildTimelineItems(photos, nil, BuildOptions{
			Location: time.UTC,
			Excluded: map[string]bool{"history-history/2024-04/a.jpg": true},
		})
		assert.Equal(t, []string{"history-history/2024-05/b.jpg"}, itemIDs(items))
	})

	t.Run("equal dates keep input order", func(t *testing.T) {
		photos := []models.PhotoRecord{
			photo("history/2024-04/z.jpg", modified),
			photo("history/2024-04/a.jpg", modified),
			photo("history/2024-04/m.jpg", modified),
		}
		items := BuildTimelineItems(photos, nil, opts)
		assert.Equal(t, []string{
			"history-history/2024-04/z.jpg",
			"history-history/2024-04/a.jpg",
			"history-history/2024-04/m.jpg",
		}, itemIDs(items))
	})

	t.Run("same input gives the same output", func(t *testing.T) {
		photos := []models.PhotoRecord{
			photo("history/2024-04/a.jpg", modified),
			photo("history/2023-06/b.jpg", modified),
		}
		entries := []models.GuestbookEntry{entry("e1", "https://cdn.example.com/guestbook/c.jpg", modified)}

		assert.Equal(t, BuildTimelineItems(photos, entries, opts), BuildTimelineItems(photos, entries, opts))
	})

	t.Run("thumbnail url is derived from the original", func(t *testing.T) {
		items := BuildTimelineItems([]models.PhotoRecord{photo("history/2024-04/a.jpg", modified)}, nil, opts)
		require.Len(t, items, 1)
		assert.Equal(t, "https://cdn.example.com/history/2024-04/thumb/a.jpg", items[0].ThumbnailURL)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, BuildTimelineItems(nil, nil, opts))
	})
}
