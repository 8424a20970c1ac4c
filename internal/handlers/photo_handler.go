package handlers

import (
	"net/http"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
	"github.com/weddingcard/server/internal/services"
)

// maxPageSize caps the limit query parameter of photo listings
const maxPageSize = 1000

// PhotoHandler handles photo listing endpoints
type PhotoHandler struct {
	sources map[string]*services.PhotoSource
	def     string
}

// NewPhotoHandler creates a new PhotoHandler. The first source is used
// when no prefix is requested.
func NewPhotoHandler(sources ...*services.PhotoSource) *PhotoHandler {
	h := &PhotoHandler{sources: make(map[string]*services.PhotoSource)}
	for i, src := range sources {
		h.sources[src.Prefix()] = src
		if i == 0 {
			h.def = src.Prefix()
		}
	}
	return h
}

// List returns one page of photos under a prefix
// @Summary List photos
// @Description One page of image objects under a configured prefix. Thumbnails are skipped.
// @Tags photos
// @Produce json
// @Param prefix query string false "history/ or guestbook/"
// @Param cursor query string false "Continuation token from the previous page"
// @Param limit query int false "Page size" default(100)
// @Success 200 {object} models.PhotoPage
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /api/photos [get]
func (h *PhotoHandler) List(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = h.def
	}
	src, ok := h.sources[prefix]
	if !ok {
		respondError(w, http.StatusBadRequest, "Unknown photo prefix.")
		return
	}

	limit, ok := intParam(r, "limit", services.DefaultPageSize)
	if !ok || limit < 1 || limit > maxPageSize {
		respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000.")
		return
	}

	page, err := src.ListPage(r.Context(), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		observability.WithContext(r.Context()).WithFields(map[string]interface{}{
			"prefix": prefix,
			"error":  err.Error(),
		}).Warn("Photo listing failed")
		respondError(w, http.StatusBadGateway, models.ErrSourceFetch.Error())
		return
	}

	respondJSON(w, http.StatusOK, page)
}
