package models

import "time"

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	// Items is the number of photos currently on the timeline
	Items       int    `json:"items"`
	SourceError string `json:"sourceError,omitempty"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// GuestbookDraft echoes the submitted text fields back when an upload
// fails, so the form can be restored
type GuestbookDraft struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Side    string `json:"side,omitempty"`
}

// GuestbookErrorResponse is returned when a guestbook submission fails
type GuestbookErrorResponse struct {
	Error string          `json:"error"`
	Draft *GuestbookDraft `json:"draft,omitempty"`
}

// GuestbookListResponse is returned when listing guestbook entries
type GuestbookListResponse struct {
	Entries    []GuestbookEntry `json:"entries"`
	TotalCount int              `json:"totalCount"`
}

// RSVPListResponse is returned to admins listing replies
type RSVPListResponse struct {
	Replies    []RSVP `json:"replies"`
	TotalCount int    `json:"totalCount"`
	Guests     int    `json:"guests"`
}

// TimelineResponse is a full timeline snapshot for one viewport
type TimelineResponse struct {
	Items         []TimelineItem  `json:"items"`
	Clusters      []DayCluster    `json:"clusters"`
	Window        []DayCluster    `json:"window"`
	Months        []MonthSlot     `json:"months"`
	AxisStart     time.Time       `json:"axisStart"`
	AxisEnd       time.Time       `json:"axisEnd"`
	SelectedIndex int             `json:"selectedIndex"`
	ScrollOffset  float64         `json:"scrollOffset"`
	Preload       []PreloadTarget `json:"preload"`
}

// BackfillResult summarises a thumbnail backfill run
type BackfillResult struct {
	Scanned   int `json:"scanned"`
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// CalendarLinks are "add to calendar" URLs for the wedding event
type CalendarLinks struct {
	Google  string `json:"google"`
	Naver   string `json:"naver"`
	Outlook string `json:"outlook"`
	ICS     string `json:"ics"`
}
