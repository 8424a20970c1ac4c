package services

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
)

// DefaultLazyMargin is how close, in pixels, a ruler thumbnail must come to
// the viewport before it is loaded
const DefaultLazyMargin = 100.0

const thumbSegment = models.ThumbnailSegment

// ThumbnailURL returns the thumbnail URL for an original image URL by
// inserting a thumb segment before the file name. Both raw "/" and encoded
// "%2F" separators are understood; query strings are kept.
func ThumbnailURL(original string) string {
	if original == "" {
		return ""
	}

	base, suffix := splitSuffix(original)
	idx, sep := lastSeparator(base)
	if idx < 0 {
		return thumbSegment + "/" + base + suffix
	}

	dir := base[:idx]
	file := base[idx+len(sep):]
	if endsWithSegment(dir, thumbSegment) {
		return original
	}
	return dir + sep + thumbSegment + sep + file + suffix
}

// OriginalURL reverses ThumbnailURL. URLs without a thumb segment are
// returned unchanged.
func OriginalURL(thumb string) string {
	base, suffix := splitSuffix(thumb)
	idx, sep := lastSeparator(base)
	if idx < 0 {
		return thumb
	}

	dir := base[:idx]
	file := base[idx+len(sep):]
	if !endsWithSegment(dir, thumbSegment) {
		return thumb
	}
	parent := strings.TrimSuffix(dir, thumbSegment)
	if parent == "" {
		return file + suffix
	}
	return parent + file + suffix
}

// lastSeparator finds the last "/" or "%2F" (any case) in s
func lastSeparator(s string) (int, string) {
	raw := strings.LastIndex(s, "/")
	enc := strings.LastIndex(strings.ToLower(s), "%2f")
	if enc > raw {
		return enc, s[enc : enc+3]
	}
	if raw >= 0 {
		return raw, "/"
	}
	return -1, ""
}

// endsWithSegment reports whether dir's last path segment equals seg
func endsWithSegment(dir, seg string) bool {
	if !strings.HasSuffix(dir, seg) {
		return false
	}
	rest := dir[:len(dir)-len(seg)]
	if rest == "" {
		return true
	}
	return strings.HasSuffix(rest, "/") || strings.HasSuffix(strings.ToLower(rest), "%2f")
}

func splitSuffix(s string) (string, string) {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}

// PreloadPlan lists the originals to fetch for a selection: the selected
// item eagerly, then its neighbours. Neighbours wrap around like
// navigation does and duplicates are dropped.
func PreloadPlan(items []models.TimelineItem, selected int) []models.PreloadTarget {
	n := len(items)
	if n == 0 || selected < 0 || selected >= n {
		return nil
	}

	plan := make([]models.PreloadTarget, 0, 3)
	seen := make(map[int]bool, 3)

	for _, idx := range []int{selected, (selected - 1 + n) % n, (selected + 1) % n} {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		plan = append(plan, models.PreloadTarget{
			ItemID: items[idx].ID,
			URL:    OriginalURL(items[idx].URL),
			Eager:  idx == selected,
		})
	}
	return plan
}

// Preloader fetches images ahead of time. Failures are never reported.
type Preloader interface {
	Preload(ctx context.Context, targets []models.PreloadTarget)
}

// NoopPreloader discards preload requests
type NoopPreloader struct{}

func (NoopPreloader) Preload(context.Context, []models.PreloadTarget) {}

// HTTPPreloader warms a CDN by issuing HEAD requests for upcoming images
type HTTPPreloader struct {
	client *http.Client
}

// NewHTTPPreloader creates a preloader with a short request timeout
func NewHTTPPreloader(timeout time.Duration) *HTTPPreloader {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPreloader{client: &http.Client{Timeout: timeout}}
}

// Preload fires one request per target in the background and returns
// immediately
func (p *HTTPPreloader) Preload(ctx context.Context, targets []models.PreloadTarget) {
	for _, t := range targets {
		go func(t models.PreloadTarget) {
			if err := p.warm(context.WithoutCancel(ctx), t.URL); err != nil {
				observability.WithContext(ctx).WithFields(map[string]interface{}{
					"item_id": t.ItemID,
					"error":   err.Error(),
				}).Debug("Preload failed")
			}
		}(t)
	}
}

func (p *HTTPPreloader) warm(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("preload %s: status %d", url, resp.StatusCode)
	}
	return nil
}

// LazyLoader reveals ruler thumbnails once they come within a margin of
// the viewport. Revealed thumbnails stay revealed.
type LazyLoader struct {
	mu       sync.Mutex
	margin   float64
	extents  map[string][2]float64
	revealed map[string]bool
	detached bool
}

// NewLazyLoader creates a loader. A non-positive margin uses DefaultLazyMargin.
func NewLazyLoader(margin float64) *LazyLoader {
	if margin <= 0 {
		margin = DefaultLazyMargin
	}
	return &LazyLoader{
		margin:   margin,
		extents:  make(map[string][2]float64),
		revealed: make(map[string]bool),
	}
}

// Observe registers or moves a thumbnail occupying [left, left+width]
func (l *LazyLoader) Observe(id string, left, width float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.detached || l.revealed[id] {
		return
	}
	l.extents[id] = [2]float64{left, left + width}
}

// Update checks every observed thumbnail against the viewport and returns
// the ids revealed by this call
func (l *LazyLoader) Update(scrollLeft, viewportWidth float64) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.detached {
		return nil
	}

	lo := scrollLeft - l.margin
	hi := scrollLeft + viewportWidth + l.margin

	var newly []string
	for id, ext := range l.extents {
		if ext[1] >= lo && ext[0] <= hi {
			l.revealed[id] = true
			delete(l.extents, id)
			newly = append(newly, id)
		}
	}
	sort.Strings(newly)
	return newly
}

// IsRevealed reports whether the thumbnail has been revealed
func (l *LazyLoader) IsRevealed(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.revealed[id]
}

// Detach stops observing. Later Observe and Update calls do nothing.
func (l *LazyLoader) Detach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.detached = true
	l.extents = make(map[string][2]float64)
}
