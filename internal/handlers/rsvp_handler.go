package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
	"github.com/weddingcard/server/internal/services"
)

// RSVPHandler handles attendance replies
type RSVPHandler struct {
	rsvp *services.RSVPService
}

// NewRSVPHandler creates a new RSVPHandler
func NewRSVPHandler(rsvp *services.RSVPService) *RSVPHandler {
	return &RSVPHandler{rsvp: rsvp}
}

// Submit records an attendance reply
// @Summary Reply to the invitation
// @Tags rsvp
// @Accept json
// @Produce json
// @Param request body models.RSVPRequest true "Reply"
// @Success 201 {object} models.RSVP
// @Failure 400 {object} models.ErrorResponse
// @Router /api/rsvp [post]
func (h *RSVPHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req models.RSVPRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}

	reply, err := h.rsvp.Submit(r.Context(), req)
	if err != nil {
		var rerr models.RSVPError
		if errors.As(err, &rerr) {
			respondError(w, http.StatusBadRequest, rerr.Error())
			return
		}
		observability.WithContext(r.Context()).WithField("error", err.Error()).Error("Failed to save RSVP")
		respondError(w, http.StatusInternalServerError, "Could not save your reply, please try again.")
		return
	}

	respondJSON(w, http.StatusCreated, reply)
}

// List returns every reply with the attending guest total
// @Summary List replies
// @Tags admin
// @Produce json
// @Security AdminKey
// @Success 200 {object} models.RSVPListResponse
// @Router /api/admin/rsvp [get]
func (h *RSVPHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.rsvp.List(r.Context())
	if err != nil {
		observability.WithContext(r.Context()).WithField("error", err.Error()).Error("Failed to list RSVPs")
		respondError(w, http.StatusInternalServerError, "Failed to list replies.")
		return
	}
	respondJSON(w, http.StatusOK, list)
}
