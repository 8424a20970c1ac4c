package handlers

import (
	"net/http"
	"strconv"

	"github.com/weddingcard/server/internal/services"
)

// CalendarHandler serves "add to calendar" links for the ceremony
type CalendarHandler struct {
	calendar *services.CalendarService
}

// NewCalendarHandler creates a new CalendarHandler
func NewCalendarHandler(calendar *services.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendar: calendar}
}

// ICS returns the event as an iCalendar file
// @Summary Calendar file
// @Tags calendar
// @Produce text/calendar
// @Success 200 {string} string
// @Router /api/calendar.ics [get]
func (h *CalendarHandler) ICS(w http.ResponseWriter, r *http.Request) {
	body := h.calendar.ICS()
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="wedding.ics"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// Links returns Google, Naver and Outlook calendar URLs
// @Summary Calendar links
// @Tags calendar
// @Produce json
// @Success 200 {object} models.CalendarLinks
// @Router /api/calendar/links [get]
func (h *CalendarHandler) Links(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	respondJSON(w, http.StatusOK, h.calendar.Links(scheme+"://"+r.Host+"/api/calendar.ics"))
}
