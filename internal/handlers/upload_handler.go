package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
	"github.com/weddingcard/server/internal/services"
)

// UploadHandler hands out signed upload URLs
type UploadHandler struct {
	uploads *services.UploadService
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(uploads *services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Presign returns a signed URL for a direct browser upload
// @Summary Sign a photo upload
// @Tags uploads
// @Accept json
// @Produce json
// @Param request body models.PresignRequest true "Declared type and size"
// @Success 200 {object} models.PresignResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Failure 415 {object} models.ErrorResponse
// @Failure 501 {object} models.ErrorResponse "Storage backend cannot sign"
// @Router /api/uploads/presign [post]
func (h *UploadHandler) Presign(w http.ResponseWriter, r *http.Request) {
	var req models.PresignRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}

	result, err := h.uploads.Presign(r.Context(), req)
	if err != nil {
		respondUploadError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Complete renders the thumbnail of a photo uploaded with a signed URL
// @Summary Finish a signed upload
// @Tags uploads
// @Accept json
// @Produce json
// @Success 200 {object} models.UploadResult
// @Router /api/uploads/complete [post]
func (h *UploadHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil || req.Key == "" {
		respondError(w, http.StatusBadRequest, "key is required.")
		return
	}

	result, err := h.uploads.Finalize(r.Context(), req.Key)
	if err != nil {
		respondUploadError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func respondUploadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrFileTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, models.ErrUnsupportedMediaType):
		respondError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, models.ErrUploadValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrPresignFailed):
		respondError(w, http.StatusNotImplemented, models.ErrPresignFailed.Error())
	case errors.Is(err, models.ErrPathTraversal), errors.Is(err, models.ErrInvalidExtension):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrObjectNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	default:
		observability.WithContext(r.Context()).WithField("error", err.Error()).Warn("Upload failed")
		respondError(w, http.StatusBadGateway, models.ErrUploadTransport.Error())
	}
}
