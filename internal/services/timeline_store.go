package services

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
)

// GuestbookFeed delivers full guestbook snapshots, newest first
type GuestbookFeed interface {
	Subscribe(ctx context.Context) <-chan models.GuestbookSnapshot
}

// TimelineStore holds the latest photo and guestbook snapshots and the
// timeline built from them. Every update rebuilds the whole item list, so
// the two sources may arrive in any order and any number of times.
type TimelineStore struct {
	opts BuildOptions

	// buildMu keeps listener deliveries in rebuild order
	buildMu sync.Mutex

	mu           sync.RWMutex
	photos       []models.PhotoRecord
	entries      []models.GuestbookEntry
	items        []models.TimelineItem
	photoErr     error
	guestbookErr error
	listeners    map[int]func([]models.TimelineItem)
	nextID       int
}

// NewTimelineStore creates an empty store
func NewTimelineStore(opts BuildOptions) *TimelineStore {
	return &TimelineStore{
		opts:      opts,
		listeners: make(map[int]func([]models.TimelineItem)),
	}
}

// SetPhotos replaces the photo snapshot
func (s *TimelineStore) SetPhotos(photos []models.PhotoRecord) {
	s.mu.Lock()
	s.photos = append([]models.PhotoRecord(nil), photos...)
	s.photoErr = nil
	s.mu.Unlock()
	s.rebuild()
}

// SetGuestbook replaces the guestbook snapshot
func (s *TimelineStore) SetGuestbook(entries []models.GuestbookEntry) {
	s.mu.Lock()
	s.entries = append([]models.GuestbookEntry(nil), entries...)
	s.guestbookErr = nil
	s.mu.Unlock()
	s.rebuild()
}

// SetPhotoError records a photo listing failure. Loaded data stays in
// place until the next successful SetPhotos.
func (s *TimelineStore) SetPhotoError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photoErr = err
}

// SetGuestbookError records a guestbook read failure until the next
// successful SetGuestbook.
func (s *TimelineStore) SetGuestbookError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guestbookErr = err
}

// Err joins the failures of every source that has not recovered
func (s *TimelineStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return errors.Join(s.photoErr, s.guestbookErr)
}

// Items returns the current timeline
func (s *TimelineStore) Items() []models.TimelineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items
}

// Subscribe registers fn to receive every rebuilt timeline. The returned
// function removes the listener.
func (s *TimelineStore) Subscribe(fn func([]models.TimelineItem)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *TimelineStore) rebuild() {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	s.mu.Lock()
	items := BuildTimelineItems(s.photos, s.entries, s.opts)
	s.items = items
	listeners := make([]func([]models.TimelineItem), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(items)
	}
}

// Run loads photos and follows the guestbook until ctx is done. Each
// receive on changes reloads the photo listing. Source failures are
// recorded per source and never stop the store.
func (s *TimelineStore) Run(ctx context.Context, source *PhotoSource, feed GuestbookFeed, changes <-chan struct{}) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.loadPhotos(ctx, source)
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-changes:
				if !ok {
					changes = nil
					continue
				}
				s.loadPhotos(ctx, source)
			}
		}
	})

	g.Go(func() error {
		for snap := range feed.Subscribe(ctx) {
			if snap.Err != nil {
				observability.WithField("error", snap.Err.Error()).Warn("Guestbook subscription failed")
				s.SetGuestbookError(snap.Err)
				continue
			}
			s.SetGuestbook(snap.Entries)
		}
		return nil
	})

	return g.Wait()
}

func (s *TimelineStore) loadPhotos(ctx context.Context, source *PhotoSource) {
	photos, err := source.LoadAll(ctx)
	if err != nil {
		observability.WithContext(ctx).WithFields(map[string]interface{}{
			"prefix": source.Prefix(),
			"error":  err.Error(),
		}).Warn("Photo listing failed")
		if len(photos) > 0 {
			s.SetPhotos(photos)
		}
		s.SetPhotoError(err)
		return
	}
	s.SetPhotos(photos)
}
