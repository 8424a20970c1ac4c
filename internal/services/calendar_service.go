package services

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/weddingcard/server/internal/config"
	"github.com/weddingcard/server/internal/models"
)

// DefaultEventDuration is used when the wedding has no configured length
const DefaultEventDuration = 90 * time.Minute

// CalendarEvent is the wedding as it appears in a calendar
type CalendarEvent struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// CalendarService renders "add to calendar" links and an ICS file for the
// wedding
type CalendarService struct {
	event CalendarEvent
}

// NewCalendarService parses the wedding section of the config. StartsAt is
// RFC 3339 or "2006-01-02 15:04" in loc.
func NewCalendarService(w config.Wedding, loc *time.Location) (*CalendarService, error) {
	if loc == nil {
		loc = time.Local
	}

	start, err := parseEventStart(w.StartsAt, loc)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(w.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = DefaultEventDuration
	}

	location := w.Venue
	if w.Address != "" {
		if location != "" {
			location += ", "
		}
		location += w.Address
	}

	return &CalendarService{
		event: CalendarEvent{
			Title:       w.Title,
			Description: w.Description,
			Location:    location,
			Start:       start,
			End:         start.Add(duration),
		},
	}, nil
}

func parseEventStart(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("wedding start time is not configured")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid wedding start time %q: %w", s, err)
	}
	return t, nil
}

// Event returns the configured event
func (s *CalendarService) Event() CalendarEvent {
	return s.event
}

// Links returns the provider URLs for the event
func (s *CalendarService) Links(icsURL string) models.CalendarLinks {
	return models.CalendarLinks{
		Google:  s.GoogleURL(),
		Naver:   s.NaverURL(),
		Outlook: s.OutlookURL(),
		ICS:     icsURL,
	}
}

// GoogleURL returns a Google Calendar template link
func (s *CalendarService) GoogleURL() string {
	e := s.event
	params := url.Values{}
	params.Set("action", "TEMPLATE")
	params.Set("text", e.Title)
	params.Set("dates", icsTime(e.Start)+"/"+icsTime(e.End))
	params.Set("location", e.Location)
	params.Set("details", e.Description)
	return "https://calendar.google.com/calendar/render?" + params.Encode()
}

// NaverURL returns a Naver Calendar link
func (s *CalendarService) NaverURL() string {
	e := s.event
	params := url.Values{}
	params.Set("title", e.Title)
	params.Set("scheduleStartAt", e.Start.UTC().Format(time.RFC3339))
	params.Set("scheduleEndAt", e.End.UTC().Format(time.RFC3339))
	params.Set("location", e.Location)
	return "https://calendar.naver.com/calendar/new?" + params.Encode()
}

// OutlookURL returns an Outlook.com compose link
func (s *CalendarService) OutlookURL() string {
	e := s.event
	params := url.Values{}
	params.Set("path", "/calendar/action/compose")
	params.Set("rru", "addevent")
	params.Set("subject", e.Title)
	params.Set("startdt", e.Start.UTC().Format(time.RFC3339))
	params.Set("enddt", e.End.UTC().Format(time.RFC3339))
	params.Set("location", e.Location)
	params.Set("body", e.Description)
	return "https://outlook.live.com/calendar/0/deeplink/compose?" + params.Encode()
}

// ICS renders the event as an iCalendar file
func (s *CalendarService) ICS() []byte {
	e := s.event
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Wedding Invitation//KO",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"BEGIN:VEVENT",
		"UID:wedding-" + icsTime(e.Start) + "@invitation",
		"DTSTAMP:" + icsTime(e.Start),
		"DTSTART:" + icsTime(e.Start),
		"DTEND:" + icsTime(e.End),
		"SUMMARY:" + icsEscape(e.Title),
		"LOCATION:" + icsEscape(e.Location),
		"DESCRIPTION:" + icsEscape(e.Description),
		"STATUS:CONFIRMED",
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func icsTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

var icsEscaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
)

func icsEscape(s string) string {
	return icsEscaper.Replace(s)
}
