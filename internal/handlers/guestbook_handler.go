package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
	"github.com/weddingcard/server/internal/services"
)

// GuestbookHandler handles guestbook endpoints
type GuestbookHandler struct {
	guestbook *services.GuestbookService
	uploads   *services.UploadService
}

// NewGuestbookHandler creates a new GuestbookHandler
func NewGuestbookHandler(guestbook *services.GuestbookService, uploads *services.UploadService) *GuestbookHandler {
	return &GuestbookHandler{guestbook: guestbook, uploads: uploads}
}

// List returns every entry, newest first
// @Summary List guestbook entries
// @Tags guestbook
// @Produce json
// @Success 200 {object} models.GuestbookListResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /api/guestbook [get]
func (h *GuestbookHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.guestbook.List(r.Context())
	if err != nil {
		observability.WithContext(r.Context()).WithField("error", err.Error()).Warn("Guestbook list failed")
		respondError(w, http.StatusBadGateway, models.ErrSourceFetch.Error())
		return
	}

	respondJSON(w, http.StatusOK, models.GuestbookListResponse{
		Entries:    entries,
		TotalCount: len(entries),
	})
}

// Create adds an entry. The body is either JSON or a multipart form with
// name, message, side and an optional photo file. When the photo cannot
// be stored the text fields are returned as a draft so nothing typed is
// lost.
// @Summary Leave a guestbook message
// @Tags guestbook
// @Accept json
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} models.GuestbookEntry
// @Failure 400 {object} models.GuestbookErrorResponse
// @Failure 413 {object} models.GuestbookErrorResponse
// @Failure 415 {object} models.GuestbookErrorResponse
// @Failure 502 {object} models.GuestbookErrorResponse
// @Router /api/guestbook [post]
func (h *GuestbookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateGuestbookRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, h.uploads.MaxBytes()+1<<20)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			respondError(w, http.StatusBadRequest, "Request must be multipart/form-data.")
			return
		}
		defer r.MultipartForm.RemoveAll()

		req = models.CreateGuestbookRequest{
			Name:    r.FormValue("name"),
			Message: r.FormValue("message"),
			Side:    r.FormValue("side"),
		}
		req.Normalize()

		// Check the text before spending an upload on it
		if err := req.Validate(); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		if file, header, err := r.FormFile("photo"); err == nil {
			defer file.Close()
			result, err := h.uploads.Upload(r.Context(), header.Header.Get("Content-Type"), file, header.Size)
			if err != nil {
				h.respondUploadError(w, req, err)
				return
			}
			req.PhotoURL = result.URL
		}
	} else {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid JSON body.")
			return
		}
	}

	entry, err := h.guestbook.Add(r.Context(), req)
	if err != nil {
		var gerr models.GuestbookError
		if errors.As(err, &gerr) {
			respondError(w, http.StatusBadRequest, gerr.Error())
			return
		}
		observability.WithContext(r.Context()).WithField("error", err.Error()).Error("Failed to save guestbook entry")
		respondJSON(w, http.StatusInternalServerError, models.GuestbookErrorResponse{
			Error: "Could not save your message, please try again.",
			Draft: draftOf(req),
		})
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

func (h *GuestbookHandler) respondUploadError(w http.ResponseWriter, req models.CreateGuestbookRequest, err error) {
	status := http.StatusBadGateway
	message := models.ErrUploadTransport.Error()
	switch {
	case errors.Is(err, models.ErrFileTooLarge):
		status, message = http.StatusRequestEntityTooLarge, models.ErrFileTooLarge.Error()
	case errors.Is(err, models.ErrUnsupportedMediaType):
		status, message = http.StatusUnsupportedMediaType, models.ErrUnsupportedMediaType.Error()
	case errors.Is(err, models.ErrUploadValidation):
		status, message = http.StatusBadRequest, err.Error()
	}

	respondJSON(w, status, models.GuestbookErrorResponse{
		Error: message,
		Draft: draftOf(req),
	})
}

func draftOf(req models.CreateGuestbookRequest) *models.GuestbookDraft {
	return &models.GuestbookDraft{
		Name:    req.Name,
		Message: req.Message,
		Side:    req.Side,
	}
}
