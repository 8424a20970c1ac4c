package services

import (
	"time"

	"github.com/weddingcard/server/internal/models"
)

// DefaultWindowBuffer is the margin, in percent of the axis, rendered on
// either side of the visible range
const DefaultWindowBuffer = 20.0

// Axis maps dates onto a 0..100 strip. End is fixed when a timeline is
// opened and does not follow the clock afterwards.
type Axis struct {
	Start time.Time
	End   time.Time
}

// NewAxis creates an axis from start to now
func NewAxis(start, now time.Time) Axis {
	return Axis{Start: start, End: now}
}

// PositionPercent places t on the axis, clamped to [0, 100]
func (a Axis) PositionPercent(t time.Time) float64 {
	if t.Before(a.Start) {
		return 0
	}
	if t.After(a.End) {
		return 100
	}
	span := a.End.Sub(a.Start)
	if span <= 0 {
		return 0
	}
	return float64(t.Sub(a.Start)) / float64(span) * 100
}

// ClusterByDay groups sorted items by calendar day in loc. Member indexes
// refer to positions in items. A cluster sits at the position of its first
// member.
func ClusterByDay(items []models.TimelineItem, axis Axis, loc *time.Location) []models.DayCluster {
	if loc == nil {
		loc = time.Local
	}

	type dayKey struct {
		year  int
		month time.Month
		day   int
	}

	var clusters []models.DayCluster
	byDay := make(map[dayKey]int)

	for i, item := range items {
		y, m, d := item.EffectiveDate.In(loc).Date()
		key := dayKey{y, m, d}

		idx, ok := byDay[key]
		if !ok {
			idx = len(clusters)
			byDay[key] = idx
			clusters = append(clusters, models.DayCluster{
				Year:            y,
				Month:           int(m),
				Day:             d,
				PositionPercent: axis.PositionPercent(item.EffectiveDate),
			})
		}
		clusters[idx].Members = append(clusters[idx].Members, models.ClusterMember{Item: item, Index: i})
	}

	return clusters
}

// RenderWindow keeps the clusters within buffer percent of the visible
// range. The cluster holding selectedIndex is always kept.
func RenderWindow(clusters []models.DayCluster, visibleStart, visibleEnd, buffer float64, selectedIndex int) []models.DayCluster {
	lo := visibleStart - buffer
	hi := visibleEnd + buffer

	window := make([]models.DayCluster, 0, len(clusters))
	for _, c := range clusters {
		if (c.PositionPercent >= lo && c.PositionPercent <= hi) || c.Contains(selectedIndex) {
			window = append(window, c)
		}
	}
	return window
}

// ClusterOf returns the cluster that holds the flattened index
func ClusterOf(clusters []models.DayCluster, index int) (models.DayCluster, bool) {
	for _, c := range clusters {
		if c.Contains(index) {
			return c, true
		}
	}
	return models.DayCluster{}, false
}

// VisibleRange converts a scroll position into the visible percentage range
// of the strip
func VisibleRange(scrollLeft, viewportWidth, scrollWidth float64) (start, end float64) {
	if scrollWidth <= 0 {
		return 0, 100
	}
	start = clamp(scrollLeft/scrollWidth*100, 0, 100)
	end = clamp((scrollLeft+viewportWidth)/scrollWidth*100, start, 100)
	return start, end
}

// MonthRuler lists every month from start to end inclusive. Slots are
// evenly spaced and do not follow PositionPercent.
func MonthRuler(start, end time.Time) []models.MonthSlot {
	count := (end.Year()-start.Year())*12 + int(end.Month()-start.Month()) + 1
	if count <= 0 {
		return nil
	}

	slots := make([]models.MonthSlot, count)
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for i := range slots {
		t := first.AddDate(0, i, 0)
		slots[i] = models.MonthSlot{
			Year:        t.Year(),
			Month:       int(t.Month()),
			SlotPercent: float64(i) / float64(count) * 100,
			YearStart:   i == 0 || t.Month() == time.January,
		}
	}
	return slots
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
