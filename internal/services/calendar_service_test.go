package services

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weddingcard/server/internal/config"
)

func testCalendar(t *testing.T) *CalendarService {
	t.Helper()
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	svc, err := NewCalendarService(config.Wedding{
		Title:       "Minho ♥ Seoyeon",
		Description: "Join us.\nReception follows",
		Venue:       "The Hall",
		Address:     "1 Gangnam-daero, Seoul",
		StartsAt:    "2025-10-18 12:30",
	}, seoul)
	require.NoError(t, err)
	return svc
}

func TestNewCalendarService(t *testing.T) {
	svc := testCalendar(t)
	e := svc.Event()

	assert.Equal(t, time.Date(2025, 10, 18, 3, 30, 0, 0, time.UTC), e.Start.UTC())
	assert.Equal(t, DefaultEventDuration, e.End.Sub(e.Start))
	assert.Equal(t, "The Hall, 1 Gangnam-daero, Seoul", e.Location)

	t.Run("rfc3339 start", func(t *testing.T) {
		svc, err := NewCalendarService(config.Wedding{StartsAt: "2025-10-18T12:30:00+09:00", DurationMinutes: 60}, nil)
		require.NoError(t, err)
		assert.Equal(t, time.Hour, svc.Event().End.Sub(svc.Event().Start))
	})

	t.Run("missing start", func(t *testing.T) {
		_, err := NewCalendarService(config.Wedding{}, nil)
		assert.Error(t, err)
	})

	t.Run("bad start", func(t *testing.T) {
		_, err := NewCalendarService(config.Wedding{StartsAt: "next saturday"}, nil)
		assert.Error(t, err)
	})
}

func TestCalendarService_Links(t *testing.T) {
	svc := testCalendar(t)
	links := svc.Links("/api/calendar.ics")

	google, err := url.Parse(links.Google)
	require.NoError(t, err)
	assert.Equal(t, "calendar.google.com", google.Host)
	assert.Equal(t, "TEMPLATE", google.Query().Get("action"))
	assert.Equal(t, "20251018T033000Z/20251018T050000Z", google.Query().Get("dates"))
	assert.Equal(t, "Minho ♥ Seoyeon", google.Query().Get("text"))

	naver, err := url.Parse(links.Naver)
	require.NoError(t, err)
	assert.Equal(t, "2025-10-18T03:30:00Z", naver.Query().Get("scheduleStartAt"))
	assert.Equal(t, "2025-10-18T05:00:00Z", naver.Query().Get("scheduleEndAt"))

	outlook, err := url.Parse(links.Outlook)
	require.NoError(t, err)
	assert.Equal(t, "addevent", outlook.Query().Get("rru"))
	assert.Equal(t, "2025-10-18T05:00:00Z", outlook.Query().Get("enddt"))

	assert.Equal(t, "/api/calendar.ics", links.ICS)
}

func TestCalendarService_ICS(t *testing.T) {
	ics := string(testCalendar(t).ICS())

	assert.True(t, strings.HasPrefix(ics, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(ics, "END:VCALENDAR\r\n"))
	assert.Contains(t, ics, "DTSTART:20251018T033000Z\r\n")
	assert.Contains(t, ics, "DTEND:20251018T050000Z\r\n")
	assert.Contains(t, ics, `LOCATION:The Hall\, 1 Gangnam-daero\, Seoul`)
	assert.Contains(t, ics, `DESCRIPTION:Join us.\nReception follows`)
}
