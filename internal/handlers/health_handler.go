package handlers

import (
	"net/http"
	"time"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/services"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	timeline *services.TimelineStore
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(timeline *services.TimelineStore) *HealthHandler {
	return &HealthHandler{timeline: timeline}
}

// HealthCheck returns the server health status. A failing photo or
// guestbook source reports "degraded" but still answers 200: the timeline
// keeps serving what it loaded.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse "Server is healthy"
// @Router /api/health [get]
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	}

	if h.timeline != nil {
		response.Items = len(h.timeline.Items())
		if err := h.timeline.Err(); err != nil {
			response.Status = "degraded"
			response.SourceError = err.Error()
		}
	}

	respondJSON(w, http.StatusOK, response)
}
