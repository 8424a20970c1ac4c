package handlers

import (
	"context"
	"net/http"

	"github.com/weddingcard/server/internal/services"
)

// AdminHandler exposes maintenance tasks to the hosts
type AdminHandler struct {
	maintenance *services.MaintenanceService
	hub         *services.WebSocketHub
	guestbook   *services.GuestbookService
	store       *services.TimelineStore
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(maintenance *services.MaintenanceService, hub *services.WebSocketHub, guestbook *services.GuestbookService, store *services.TimelineStore) *AdminHandler {
	return &AdminHandler{
		maintenance: maintenance,
		hub:         hub,
		guestbook:   guestbook,
		store:       store,
	}
}

// adminStatus is the response of GET /api/admin/status
type adminStatus struct {
	Maintenance          services.MaintenanceStatus `json:"maintenance"`
	TimelineItems        int                        `json:"timelineItems"`
	SourceError          string                     `json:"sourceError,omitempty"`
	WebSocketClients     int                        `json:"websocketClients"`
	GuestbookSubscribers int                        `json:"guestbookSubscribers"`
}

// Status reports the backfill state and live connection counts
// @Summary Server status
// @Tags admin
// @Produce json
// @Security AdminKey
// @Router /api/admin/status [get]
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := adminStatus{
		Maintenance:          h.maintenance.GetStatus(),
		TimelineItems:        len(h.store.Items()),
		WebSocketClients:     h.hub.GetClientCount(),
		GuestbookSubscribers: h.guestbook.Subscribers(),
	}
	if err := h.store.Err(); err != nil {
		status.SourceError = err.Error()
	}
	respondJSON(w, http.StatusOK, status)
}

// RunBackfill starts a thumbnail backfill in the background
// @Summary Generate missing thumbnails
// @Tags admin
// @Security AdminKey
// @Success 202
// @Failure 409 {object} models.ErrorResponse
// @Router /api/admin/thumbnails/backfill [post]
func (h *AdminHandler) RunBackfill(w http.ResponseWriter, r *http.Request) {
	if h.maintenance.GetStatus().Running {
		respondError(w, http.StatusConflict, services.ErrBackfillRunning.Error())
		return
	}
	h.maintenance.RunNow(context.WithoutCancel(r.Context()))
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
