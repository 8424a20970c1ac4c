package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weddingcard/server/internal/models"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []models.TimelineState
}

func (r *stateRecorder) emit(s models.TimelineState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) last() models.TimelineState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return models.TimelineState{SelectedIndex: -1}
	}
	return r.states[len(r.states)-1]
}

func (r *stateRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

type recordingPreloader struct {
	mu      sync.Mutex
	batches [][]models.PreloadTarget
}

func (p *recordingPreloader) Preload(_ context.Context, targets []models.PreloadTarget) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, targets)
}

func (p *recordingPreloader) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

var sessionNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func sessionStore(n int) *TimelineStore {
	store := NewTimelineStore(BuildOptions{Location: time.UTC})
	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	photos := make([]models.PhotoRecord, n)
	for i := range photos {
		photos[i] = photo(fmt.Sprintf("history/misc/%03d.jpg", i), base.AddDate(0, 0, i))
	}
	store.SetPhotos(photos)
	return store
}

func openSession(t *testing.T, store *TimelineStore, opts SessionOptions) (*TimelineSession, *stateRecorder) {
	t.Helper()
	if opts.AxisStart.IsZero() {
		opts.AxisStart = time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)
	}
	opts.Location = time.UTC
	opts.Now = func() time.Time { return sessionNow }

	rec := &stateRecorder{}
	s := NewTimelineSession(store, opts, rec.emit)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(s.Close)
	return s, rec
}

func TestTimelineSession_Open(t *testing.T) {
	s, rec := openSession(t, sessionStore(3), SessionOptions{})

	require.Equal(t, 1, rec.count())
	state := rec.last()
	assert.Equal(t, 0, state.SelectedIndex)
	assert.Equal(t, 3, state.Total)
	require.NotNil(t, state.Item)
	assert.Len(t, state.Preload, 3)

	assert.True(t, sessionNow.Equal(s.Axis().End))
	assert.Len(t, s.Clusters(), 3)

	t.Run("open twice is a no-op", func(t *testing.T) {
		require.NoError(t, s.Open(context.Background()))
		assert.Equal(t, 1, rec.count())
	})
}

func TestTimelineSession_Navigation(t *testing.T) {
	preloader := &recordingPreloader{}
	s, rec := openSession(t, sessionStore(3), SessionOptions{Preloader: preloader})

	assert.Equal(t, 1, s.Next())
	assert.Equal(t, 1, rec.last().SelectedIndex)
	assert.Equal(t, 1, preloader.count())

	assert.Equal(t, 0, s.Previous())
	assert.Equal(t, 2, s.Previous())
	assert.Equal(t, 2, rec.last().SelectedIndex)

	_, err := s.Select(7)
	assert.ErrorIs(t, err, models.ErrIndexOutOfRange)

	idx, err := s.JumpToIndex(1)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = s.JumpToDate(time.Date(2024, 4, 3, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, idx)

	assert.Equal(t, KeyActionPrevious, s.HandleKey("ArrowLeft"))
	assert.Equal(t, 1, s.State().SelectedIndex)
	assert.Equal(t, KeyActionClose, s.HandleKey("Escape"))
	assert.False(t, s.Closed())

	assert.Equal(t, KeyActionNext, s.HandleSwipe(-120, 0))
	assert.Equal(t, 2, s.State().SelectedIndex)

	t.Run("no emit when the selection does not change", func(t *testing.T) {
		before := rec.count()
		_, err := s.Select(2)
		require.NoError(t, err)
		assert.Equal(t, before, rec.count())
	})
}

func TestTimelineSession_ImageFailures(t *testing.T) {
	s, rec := openSession(t, sessionStore(3), SessionOptions{})
	items := s.Items()
	require.Len(t, items, 3)

	s.ReportImageFailed(items[1].ID)
	assert.Equal(t, 2, rec.last().Total)
	assert.NotContains(t, itemIDs(s.Items()), items[1].ID)

	t.Run("reported once", func(t *testing.T) {
		before := rec.count()
		s.ReportImageFailed(items[1].ID)
		assert.Equal(t, before, rec.count())
	})

	t.Run("stays hidden across store rebuilds", func(t *testing.T) {
		s.store.SetGuestbook(nil)
		assert.Len(t, s.Items(), 2)
	})

	t.Run("loading again restores it", func(t *testing.T) {
		s.ReportImageLoaded(items[1].ID)
		assert.Equal(t, 3, rec.last().Total)
	})
}

func TestTimelineSession_StoreUpdates(t *testing.T) {
	store := sessionStore(5)
	s, rec := openSession(t, store, SessionOptions{})

	_, err := s.Select(4)
	require.NoError(t, err)

	store.SetPhotos(store.photos[:2])

	state := rec.last()
	assert.Equal(t, 2, state.Total)
	assert.Equal(t, 0, state.SelectedIndex)
}

func TestTimelineSession_Autoplay(t *testing.T) {
	t.Run("advances on its own", func(t *testing.T) {
		s, _ := openSession(t, sessionStore(3), SessionOptions{Autoplay: true, AutoplayInterval: 10 * time.Millisecond})
		assert.Eventually(t, func() bool { return s.State().SelectedIndex != 0 }, time.Second, 5*time.Millisecond)
	})

	t.Run("manual navigation keeps it running", func(t *testing.T) {
		s, rec := openSession(t, sessionStore(3), SessionOptions{Autoplay: true, AutoplayInterval: 10 * time.Millisecond})
		s.Next()
		before := rec.count()
		assert.Eventually(t, func() bool { return rec.count() > before+1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("single item does not tick", func(t *testing.T) {
		_, rec := openSession(t, sessionStore(1), SessionOptions{Autoplay: true, AutoplayInterval: 5 * time.Millisecond})
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, rec.count())
	})
}

func TestTimelineSession_Scroll(t *testing.T) {
	s, rec := openSession(t, sessionStore(3), SessionOptions{LazyMargin: DefaultLazyMargin, ThumbWidth: 48})

	s.Scroll(0, 10000, 10000)

	assert.Eventually(t, func() bool {
		return len(rec.last().Revealed) == 3
	}, time.Second, 5*time.Millisecond)

	state := rec.last()
	assert.Len(t, state.Window, 3)
}

func TestTimelineSession_Close(t *testing.T) {
	t.Run("idempotent and final", func(t *testing.T) {
		s, rec := openSession(t, sessionStore(3), SessionOptions{Autoplay: true, AutoplayInterval: 5 * time.Millisecond})
		s.Close()
		s.Close()
		assert.True(t, s.Closed())

		_, err := s.Select(1)
		assert.ErrorIs(t, err, models.ErrSessionClosed)
		assert.ErrorIs(t, s.Open(context.Background()), models.ErrSessionClosed)

		count := rec.count()
		s.store.SetGuestbook(nil)
		time.Sleep(30 * time.Millisecond)
		assert.Equal(t, count, rec.count())
	})

	t.Run("context cancel closes the session", func(t *testing.T) {
		s := NewTimelineSession(sessionStore(2), SessionOptions{Now: func() time.Time { return sessionNow }}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		require.NoError(t, s.Open(ctx))

		cancel()
		assert.Eventually(t, s.Closed, time.Second, 5*time.Millisecond)
	})

	t.Run("close before open", func(t *testing.T) {
		s := NewTimelineSession(sessionStore(2), SessionOptions{}, nil)
		s.Close()
		assert.True(t, s.Closed())
	})
}
