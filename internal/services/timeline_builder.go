package services

import (
	"sort"
	"strings"
	"time"

	"github.com/weddingcard/server/internal/models"
)

// BuildOptions controls how timeline items are derived
type BuildOptions struct {
	// Location is used for date inference. Nil means time.Local.
	Location *time.Location
	// Excluded ids are left out of the result (images that failed to load)
	Excluded map[string]bool
}

// BuildTimelineItems merges listed photos and guestbook entries into one
// list sorted by effective date.
//
// Photos come first in listing order, then guestbook entries that carry a
// photo. Duplicate ids keep their first occurrence and equal dates keep
// their relative order, so the same input always yields the same output.
func BuildTimelineItems(photos []models.PhotoRecord, entries []models.GuestbookEntry, opts BuildOptions) []models.TimelineItem {
	items := make([]models.TimelineItem, 0, len(photos)+len(entries))
	seen := make(map[string]bool, len(photos)+len(entries))

	add := func(item models.TimelineItem) {
		if seen[item.ID] || opts.Excluded[item.ID] {
			return
		}
		seen[item.ID] = true
		items = append(items, item)
	}

	for _, p := range photos {
		add(historyItem(p, opts.Location))
	}

	for _, e := range entries {
		if !e.HasPhoto() {
			continue
		}
		add(guestbookItem(e, opts.Location))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].EffectiveDate.Before(items[j].EffectiveDate)
	})

	return items
}

func historyItem(p models.PhotoRecord, loc *time.Location) models.TimelineItem {
	src := p.URL
	if src == "" {
		src = p.Key
	}

	item := models.TimelineItem{
		ID:            models.HistoryItemID(p.Key),
		Origin:        models.OriginHistory,
		URL:           src,
		ThumbnailURL:  ThumbnailURL(src),
		EffectiveDate: p.LastModified,
	}

	// Keys are more reliable than URLs: a CDN may rewrite the path
	if inferred, ok := InferDate(p.Key, loc); ok {
		item.InferredDate = &inferred
		item.EffectiveDate = inferred
	} else if inferred, ok := InferDate(src, loc); ok {
		item.InferredDate = &inferred
		item.EffectiveDate = inferred
	}

	return item
}

func guestbookItem(e models.GuestbookEntry, loc *time.Location) models.TimelineItem {
	photoURL := strings.TrimSpace(e.PhotoURL)

	item := models.TimelineItem{
		ID:            models.GuestbookItemID(e.ID),
		Origin:        models.OriginGuestbook,
		URL:           photoURL,
		ThumbnailURL:  ThumbnailURL(photoURL),
		EffectiveDate: e.CreatedAt,
		Name:          e.Name,
		Message:       e.Message,
	}

	if inferred, ok := InferDate(photoURL, loc); ok {
		item.InferredDate = &inferred
		item.EffectiveDate = inferred
	}

	return item
}
