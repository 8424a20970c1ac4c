package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/services"
)

// TimelineHandler serves one-shot timeline snapshots for clients that do
// not hold a live session
type TimelineHandler struct {
	store *services.TimelineStore
	opts  services.SessionOptions
}

// NewTimelineHandler creates a new TimelineHandler
func NewTimelineHandler(store *services.TimelineStore, opts services.SessionOptions) *TimelineHandler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.WindowBuffer <= 0 {
		opts.WindowBuffer = services.DefaultWindowBuffer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TimelineHandler{store: store, opts: opts}
}

// Get returns the timeline laid out for one viewport
// @Summary Memory timeline
// @Description Items, day clusters, month ruler and render window for a scroll position
// @Tags timeline
// @Produce json
// @Param scrollLeft query number false "Strip scroll position in px"
// @Param viewport query number false "Visible strip width in px"
// @Param scrollWidth query number false "Full strip width in px"
// @Param selected query int false "Selected item index"
// @Success 200 {object} models.TimelineResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /api/timeline [get]
func (h *TimelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	scrollLeft, ok1 := floatParam(r, "scrollLeft", 0)
	viewport, ok2 := floatParam(r, "viewport", 0)
	scrollWidth, ok3 := floatParam(r, "scrollWidth", 0)
	selected, ok4 := intParam(r, "selected", 0)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		respondError(w, http.StatusBadRequest, "Invalid viewport parameters.")
		return
	}

	items := h.store.Items()
	if len(items) == 0 {
		if err := h.store.Err(); err != nil {
			respondError(w, http.StatusServiceUnavailable, models.ErrSourceFetch.Error())
			return
		}
	}

	nav := services.NewNavigator(h.opts.SwipeThreshold)
	nav.SetItems(items)
	if len(items) > 0 {
		if _, err := nav.Select(selected); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	selected = nav.Selected()

	axis := services.NewAxis(h.opts.AxisStart, h.opts.Now().In(h.opts.Location))
	clusters := services.ClusterByDay(items, axis, h.opts.Location)
	start, end := services.VisibleRange(scrollLeft, viewport, scrollWidth)

	response := models.TimelineResponse{
		Items:         items,
		Clusters:      clusters,
		Window:        services.RenderWindow(clusters, start, end, h.opts.WindowBuffer, selected),
		Months:        services.MonthRuler(axis.Start, axis.End),
		AxisStart:     axis.Start,
		AxisEnd:       axis.End,
		SelectedIndex: selected,
		Preload:       services.PreloadPlan(items, selected),
	}
	if c, ok := services.ClusterOf(clusters, selected); ok {
		response.ScrollOffset = services.ScrollOffset(c.PositionPercent, scrollWidth, viewport)
	}
	if response.Items == nil {
		response.Items = []models.TimelineItem{}
	}

	respondJSON(w, http.StatusOK, response)
}

// JumpToDate returns the index of the item nearest to the date query
// parameter (2006-01-02)
func (h *TimelineHandler) JumpToDate(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	date, err := time.ParseInLocation("2006-01-02", raw, h.opts.Location)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be formatted YYYY-MM-DD.")
		return
	}

	nav := services.NewNavigator(h.opts.SwipeThreshold)
	nav.SetItems(h.store.Items())
	idx, err := nav.JumpToDate(date)
	if err != nil {
		if errors.Is(err, models.ErrEmptyTimeline) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"selectedIndex": idx,
		"item":          nav.Current(),
	})
}
