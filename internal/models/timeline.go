package models

import "time"

// Origin tells where a timeline item came from
type Origin string

const (
	OriginHistory   Origin = "history"
	OriginGuestbook Origin = "guestbook"
)

// TimelineItem is one photo on the memory timeline
type TimelineItem struct {
	ID            string     `json:"id"`
	Origin        Origin     `json:"origin"`
	URL           string     `json:"url"`
	ThumbnailURL  string     `json:"thumbnailUrl"`
	EffectiveDate time.Time  `json:"effectiveDate"`
	InferredDate  *time.Time `json:"inferredDate,omitempty"`
	Name          string     `json:"name,omitempty"`
	Message       string     `json:"message,omitempty"`
}

// HistoryItemID returns the timeline id for an object key
func HistoryItemID(key string) string {
	return string(OriginHistory) + "-" + key
}

// GuestbookItemID returns the timeline id for a guestbook entry
func GuestbookItemID(entryID string) string {
	return string(OriginGuestbook) + "-" + entryID
}

// ClusterMember is an item inside a day cluster together with its index in
// the flattened item list
type ClusterMember struct {
	Item  TimelineItem `json:"item"`
	Index int          `json:"index"`
}

// DayCluster groups the items sharing a calendar day
type DayCluster struct {
	Year            int             `json:"year"`
	Month           int             `json:"month"`
	Day             int             `json:"day"`
	Members         []ClusterMember `json:"members"`
	PositionPercent float64         `json:"positionPercent"`
}

// Representative is the first member of the cluster
func (c DayCluster) Representative() ClusterMember {
	return c.Members[0]
}

// Contains reports whether the flattened index belongs to this cluster
func (c DayCluster) Contains(index int) bool {
	for _, m := range c.Members {
		if m.Index == index {
			return true
		}
	}
	return false
}

// MonthSlot is one tick of the month ruler
type MonthSlot struct {
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	SlotPercent float64 `json:"slotPercent"`
	YearStart   bool    `json:"yearStart"`
}

// PreloadTarget is an image the viewer should fetch ahead of time
type PreloadTarget struct {
	ItemID string `json:"itemId"`
	URL    string `json:"url"`
	Eager  bool   `json:"eager"`
}

// TimelineState is what a viewer session emits after every change.
// Window holds the clusters to render for the current scroll position and
// Revealed the ruler thumbnails that became visible since the last state.
type TimelineState struct {
	SelectedIndex int             `json:"selectedIndex"`
	Item          *TimelineItem   `json:"item,omitempty"`
	ScrollOffset  float64         `json:"scrollOffset"`
	Preload       []PreloadTarget `json:"preload"`
	Total         int             `json:"total"`
	Window        []DayCluster    `json:"window,omitempty"`
	Revealed      []string        `json:"revealed,omitempty"`
}

// TimelineError is returned by navigation operations
type TimelineError struct {
	Message string
}

func (e TimelineError) Error() string {
	return e.Message
}

var (
	ErrIndexOutOfRange = TimelineError{"index out of range"}
	ErrEmptyTimeline   = TimelineError{"timeline has no items"}
	ErrSessionClosed   = TimelineError{"timeline session is closed"}
)
