package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
	"github.com/weddingcard/server/internal/repository"
)

// GuestbookService stores guestbook entries and pushes every change to
// live subscribers, the WebSocket hub and the host notifier
type GuestbookService struct {
	repo     repository.GuestbookRepo
	hub      *WebSocketHub
	notifier EntryNotifier
	metrics  *observability.BusinessMetrics

	mu     sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

// NewGuestbookService creates a new GuestbookService. hub, notifier and
// metrics may be nil.
func NewGuestbookService(repo repository.GuestbookRepo, hub *WebSocketHub, notifier EntryNotifier, metrics *observability.BusinessMetrics) *GuestbookService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &GuestbookService{
		repo:     repo,
		hub:      hub,
		notifier: notifier,
		metrics:  metrics,
		subs:     make(map[int]chan struct{}),
	}
}

// List returns every entry, newest first
func (s *GuestbookService) List(ctx context.Context) ([]models.GuestbookEntry, error) {
	ctx, span := observability.StartServiceSpan(ctx, "GuestbookService", "List")
	defer span.End()

	entries, err := s.repo.List(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", models.ErrSourceFetch, err)
	}
	observability.SetSuccess(span)
	return entries, nil
}

// Add validates and stores a new entry, then tells everyone listening
func (s *GuestbookService) Add(ctx context.Context, req models.CreateGuestbookRequest) (*models.GuestbookEntry, error) {
	ctx, span := observability.StartServiceSpan(ctx, "GuestbookService", "Add")
	defer span.End()

	entry, err := models.NewGuestbookEntry(req)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	span.SetAttributes(observability.EntryID(entry.ID))

	if err := s.repo.Add(ctx, entry); err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to save guestbook entry: %w", err)
	}

	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"entry_id":  entry.ID,
		"side":      string(entry.Side),
		"has_photo": entry.HasPhoto(),
	}).Info("Guestbook entry added")
	s.metrics.RecordGuestbookEntry(ctx, string(entry.Side), entry.HasPhoto())

	s.changed()
	if s.hub != nil {
		s.hub.BroadcastToTopic(TopicGuestbook, WSTypeGuestbookEntry, entry)
	}

	// push delivery must outlive the request
	go s.notifier.NotifyGuestbookEntry(context.WithoutCancel(ctx), *entry)

	observability.SetSuccess(span)
	return entry, nil
}

// Subscribe delivers the full guestbook immediately and again after every
// change, until ctx is done. A failed read is delivered as a snapshot with
// Err set and the last good entries. The channel is closed when ctx is
// done.
func (s *GuestbookService) Subscribe(ctx context.Context) <-chan models.GuestbookSnapshot {
	out := make(chan models.GuestbookSnapshot)
	signal := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = signal
	s.mu.Unlock()

	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		}()

		var last []models.GuestbookEntry
		for {
			snap := models.GuestbookSnapshot{Entries: last}
			entries, err := s.repo.List(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				snap.Err = fmt.Errorf("%w: %w", models.ErrSourceFetch, err)
			} else {
				last = entries
				snap.Entries = entries
			}

			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}

			select {
			case <-signal:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Subscribers returns the number of live subscriptions
func (s *GuestbookService) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// changed wakes every subscriber. Bursts collapse into one reload.
func (s *GuestbookService) changed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, signal := range s.subs {
		select {
		case signal <- struct{}{}:
		default:
		}
	}
}
