package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
)

// SessionOptions configures a timeline viewer session
type SessionOptions struct {
	AxisStart        time.Time
	Location         *time.Location
	Autoplay         bool
	AutoplayInterval time.Duration
	SwipeThreshold   float64
	// WindowBuffer is the render margin in percent of the axis
	WindowBuffer float64
	// LazyMargin is the thumbnail reveal margin in pixels
	LazyMargin float64
	// ThumbWidth is the pixel width of a ruler thumbnail
	ThumbWidth float64
	Preloader  Preloader
	Metrics    *observability.BusinessMetrics
	// Now defaults to time.Now
	Now func() time.Time
}

// TimelineSession is one viewer's state over the shared timeline: the
// selection, the scroll position, the images that failed to load and the
// autoplay timer.
//
// State changes are delivered to emit in order. emit must not call back
// into the session and should not block.
type TimelineSession struct {
	ID    string
	store *TimelineStore
	opts  SessionOptions
	emit  func(models.TimelineState)

	mu       sync.Mutex
	emitMu   sync.Mutex
	source   []models.TimelineItem
	failed   map[string]bool
	items    []models.TimelineItem
	clusters []models.DayCluster
	window   []models.DayCluster
	nav      *Navigator
	axis     Axis

	scrollLeft  float64
	viewport    float64
	scrollWidth float64

	opened      bool
	closed      bool
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	autoplay *Autoplay
	frames   *FrameCoalescer
	lazy     *LazyLoader
}

// NewTimelineSession creates a closed session over store. Call Open to
// start it.
func NewTimelineSession(store *TimelineStore, opts SessionOptions, emit func(models.TimelineState)) *TimelineSession {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.WindowBuffer <= 0 {
		opts.WindowBuffer = DefaultWindowBuffer
	}
	if opts.ThumbWidth <= 0 {
		opts.ThumbWidth = 48
	}
	if opts.Preloader == nil {
		opts.Preloader = NoopPreloader{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if emit == nil {
		emit = func(models.TimelineState) {}
	}

	return &TimelineSession{
		ID:       uuid.New().String(),
		store:    store,
		opts:     opts,
		emit:     emit,
		failed:   make(map[string]bool),
		nav:      NewNavigator(opts.SwipeThreshold),
		autoplay: NewAutoplay(opts.AutoplayInterval),
		frames:   NewFrameCoalescer(FrameInterval),
		lazy:     NewLazyLoader(opts.LazyMargin),
	}
}

// Open fixes the axis end to now in the session location, subscribes to
// the store and starts autoplay if enabled. The session closes itself when
// ctx is done.
func (s *TimelineSession) Open(ctx context.Context) error {
	ctx, span := observability.StartServiceSpan(ctx, "TimelineSession", "Open")
	defer span.End()
	span.SetAttributes(observability.SessionID(s.ID))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		observability.RecordError(span, models.ErrSessionClosed)
		return models.ErrSessionClosed
	}
	if s.opened {
		s.mu.Unlock()
		return nil
	}

	s.opened = true
	s.axis = NewAxis(s.opts.AxisStart, s.opts.Now().In(s.opts.Location))
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.source = s.store.Items()
	s.recomputeLocked()
	s.mu.Unlock()

	unsubscribe := s.store.Subscribe(s.onItems)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return models.ErrSessionClosed
	}
	s.unsubscribe = unsubscribe
	sessionCtx := s.ctx
	s.mu.Unlock()

	if s.opts.Autoplay {
		s.autoplay.Start(sessionCtx, s.autoplayStep)
	}

	go func() {
		<-sessionCtx.Done()
		s.Close()
	}()

	s.opts.Metrics.RecordTimelineSession(ctx, 1)
	observability.WithContext(ctx).WithField("session_id", s.ID).Debug("Timeline session opened")

	s.publish(false)
	observability.SetSuccess(span)
	return nil
}

// Close stops autoplay and frame coalescing, detaches the lazy loader and
// unsubscribes from the store. It is safe to call more than once and
// before Open.
func (s *TimelineSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	wasOpen := s.opened
	unsubscribe := s.unsubscribe
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.autoplay.Stop()
	s.frames.Stop()
	s.lazy.Detach()
	if unsubscribe != nil {
		unsubscribe()
	}

	if wasOpen {
		_, span := observability.StartServiceSpan(context.Background(), "TimelineSession", "Close")
		span.SetAttributes(observability.SessionID(s.ID))
		s.opts.Metrics.RecordTimelineSession(context.Background(), -1)
		observability.WithField("session_id", s.ID).Debug("Timeline session closed")
		span.End()
	}
}

// Closed reports whether Close has run
func (s *TimelineSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Items returns the visible timeline: sorted, without duplicates and
// without images that failed to load
func (s *TimelineSession) Items() []models.TimelineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TimelineItem(nil), s.items...)
}

// Clusters returns the day clusters of the visible items
func (s *TimelineSession) Clusters() []models.DayCluster {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clusters
}

// Axis returns the axis fixed at Open
func (s *TimelineSession) Axis() Axis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.axis
}

// State returns the current state without emitting it
func (s *TimelineSession) State() models.TimelineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked(nil)
}

// ReportImageFailed hides an item whose image could not be loaded
func (s *TimelineSession) ReportImageFailed(id string) {
	s.mu.Lock()
	if s.closed || s.failed[id] {
		s.mu.Unlock()
		return
	}
	s.failed[id] = true
	origin := originOf(s.source, id)
	s.recomputeLocked()
	s.mu.Unlock()

	s.opts.Metrics.RecordImageFailure(context.Background(), origin)
	observability.WithFields(map[string]interface{}{
		"session_id": s.ID,
		"item_id":    id,
	}).Debug(models.ErrImageLoad.Error())

	s.publish(false)
}

// ReportImageLoaded makes a previously failed item visible again
func (s *TimelineSession) ReportImageLoaded(id string) {
	s.mu.Lock()
	if s.closed || !s.failed[id] {
		s.mu.Unlock()
		return
	}
	delete(s.failed, id)
	s.recomputeLocked()
	s.mu.Unlock()

	s.publish(false)
}

// Select selects an item by index
func (s *TimelineSession) Select(index int) (int, error) {
	return s.navigate(func(n *Navigator) (int, error) { return n.Select(index) })
}

// JumpToIndex selects a member picked from a day cluster
func (s *TimelineSession) JumpToIndex(index int) (int, error) {
	return s.navigate(func(n *Navigator) (int, error) { return n.JumpToIndex(index) })
}

// JumpToDate selects the item nearest to t
func (s *TimelineSession) JumpToDate(t time.Time) (int, error) {
	return s.navigate(func(n *Navigator) (int, error) { return n.JumpToDate(t) })
}

// Next selects the following item, wrapping around
func (s *TimelineSession) Next() int {
	i, _ := s.navigate(func(n *Navigator) (int, error) { return n.Next(), nil })
	return i
}

// Previous selects the preceding item, wrapping around
func (s *TimelineSession) Previous() int {
	i, _ := s.navigate(func(n *Navigator) (int, error) { return n.Previous(), nil })
	return i
}

// HandleKey applies a key press. KeyActionClose is returned to the caller,
// which decides whether to close the session.
func (s *TimelineSession) HandleKey(key string) KeyAction {
	var action KeyAction
	s.navigate(func(n *Navigator) (int, error) {
		action = n.HandleKey(key)
		return n.Selected(), nil
	})
	return action
}

// HandleSwipe applies a swipe gesture
func (s *TimelineSession) HandleSwipe(dx, dy float64) KeyAction {
	var action KeyAction
	s.navigate(func(n *Navigator) (int, error) {
		action = n.HandleSwipe(dx, dy)
		return n.Selected(), nil
	})
	return action
}

// Scroll records the strip geometry. The render window and lazy thumbnails
// are recomputed at most once per frame.
func (s *TimelineSession) Scroll(scrollLeft, viewportWidth, scrollWidth float64) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.scrollLeft = scrollLeft
	s.viewport = viewportWidth
	s.scrollWidth = scrollWidth
	s.mu.Unlock()

	s.frames.Trigger(func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.observeThumbnailsLocked()
		s.refreshWindowLocked()
		s.mu.Unlock()
		s.publish(false)
	})
}

func (s *TimelineSession) navigate(op func(n *Navigator) (int, error)) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, models.ErrSessionClosed
	}
	before := s.nav.Selected()
	idx, err := op(s.nav)
	changed := err == nil && idx != before
	if changed {
		s.refreshWindowLocked()
	}
	s.mu.Unlock()

	if err != nil {
		return idx, err
	}
	if changed {
		s.publish(true)
	}
	return idx, nil
}

func (s *TimelineSession) autoplayStep() {
	s.mu.Lock()
	if s.closed || s.nav.Len() <= 1 {
		s.mu.Unlock()
		return
	}
	s.nav.Next()
	s.refreshWindowLocked()
	s.mu.Unlock()

	s.publish(true)
}

func (s *TimelineSession) onItems(items []models.TimelineItem) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.source = items
	s.recomputeLocked()
	s.mu.Unlock()

	s.publish(false)
}

// recomputeLocked rebuilds everything derived from the source snapshot
func (s *TimelineSession) recomputeLocked() {
	visible := make([]models.TimelineItem, 0, len(s.source))
	for _, item := range s.source {
		if !s.failed[item.ID] {
			visible = append(visible, item)
		}
	}

	s.items = visible
	s.nav.SetItems(visible)
	s.clusters = ClusterByDay(visible, s.axis, s.opts.Location)
	s.observeThumbnailsLocked()
	s.refreshWindowLocked()
}

func (s *TimelineSession) refreshWindowLocked() {
	start, end := VisibleRange(s.scrollLeft, s.viewport, s.scrollWidth)
	s.window = RenderWindow(s.clusters, start, end, s.opts.WindowBuffer, s.nav.Selected())
}

func (s *TimelineSession) observeThumbnailsLocked() {
	if s.scrollWidth <= 0 {
		return
	}
	for _, c := range s.clusters {
		center := c.PositionPercent / 100 * s.scrollWidth
		s.lazy.Observe(c.Representative().Item.ID, center-s.opts.ThumbWidth/2, s.opts.ThumbWidth)
	}
}

func (s *TimelineSession) stateLocked(revealed []string) models.TimelineState {
	selected := s.nav.Selected()
	state := models.TimelineState{
		SelectedIndex: selected,
		Item:          s.nav.Current(),
		Preload:       PreloadPlan(s.items, selected),
		Total:         len(s.items),
		Window:        s.window,
		Revealed:      revealed,
	}
	if c, ok := ClusterOf(s.clusters, selected); ok {
		state.ScrollOffset = ScrollOffset(c.PositionPercent, s.scrollWidth, s.viewport)
	}
	return state
}

// publish emits the current state. Holding emitMu across the unlock keeps
// deliveries in the order the state changed.
func (s *TimelineSession) publish(preload bool) {
	s.mu.Lock()
	if s.closed || !s.opened {
		s.mu.Unlock()
		return
	}
	revealed := s.lazy.Update(s.scrollLeft, s.viewport)
	state := s.stateLocked(revealed)
	ctx := s.ctx
	s.emitMu.Lock()
	s.mu.Unlock()

	s.emit(state)
	s.emitMu.Unlock()

	if preload && len(state.Preload) > 0 {
		s.opts.Preloader.Preload(ctx, state.Preload)
	}
}

func originOf(items []models.TimelineItem, id string) string {
	for _, item := range items {
		if item.ID == id {
			return string(item.Origin)
		}
	}
	return "unknown"
}
