package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
)

// DefaultPageSize is the number of objects requested per listing page
const DefaultPageSize = 100

// PhotoSource lists archival photos from one prefix of the object store,
// page by page. Only image objects are kept and thumbnails are skipped.
type PhotoSource struct {
	store    ObjectStore
	prefix   string
	pageSize int

	mu         sync.Mutex
	photos     []models.PhotoRecord
	nextToken  string
	hasMore    bool
	loading    bool
	generation int
}

// NewPhotoSource creates a source for prefix. A non-positive page size uses
// DefaultPageSize.
func NewPhotoSource(store ObjectStore, prefix string, pageSize int) *PhotoSource {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &PhotoSource{store: store, prefix: prefix, pageSize: pageSize}
}

// Prefix returns the listed prefix
func (s *PhotoSource) Prefix() string {
	return s.prefix
}

// LoadInitial discards loaded pages and fetches the first one. A load-more
// still in flight is superseded and its result dropped.
func (s *PhotoSource) LoadInitial(ctx context.Context) ([]models.PhotoRecord, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.loading = true
	s.mu.Unlock()

	page, err := s.ListPage(ctx, "", s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return append([]models.PhotoRecord(nil), s.photos...), nil
	}
	s.loading = false

	if err != nil {
		return append([]models.PhotoRecord(nil), s.photos...), fmt.Errorf("%w: %w", models.ErrSourceFetch, err)
	}

	s.photos = page.Photos
	s.nextToken = page.NextToken
	s.hasMore = page.HasMore
	return append([]models.PhotoRecord(nil), s.photos...), nil
}

// LoadMore fetches the next page. It issues no request when a page is
// already in flight or no more pages exist, and reports whether it loaded
// anything. A failed page leaves earlier pages intact and can be retried.
func (s *PhotoSource) LoadMore(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.loading || !s.hasMore {
		s.mu.Unlock()
		return false, nil
	}
	s.loading = true
	gen := s.generation
	token := s.nextToken
	s.mu.Unlock()

	page, err := s.ListPage(ctx, token, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false, nil
	}
	s.loading = false

	if err != nil {
		observability.WithContext(ctx).WithFields(map[string]interface{}{
			"prefix": s.prefix,
			"error":  err.Error(),
		}).Warn("Failed to load more photos")
		return false, fmt.Errorf("%w: %w", models.ErrPagination, err)
	}

	s.photos = append(s.photos, page.Photos...)
	s.nextToken = page.NextToken
	s.hasMore = page.HasMore
	return true, nil
}

// LoadAll loads the first page and then every remaining page
func (s *PhotoSource) LoadAll(ctx context.Context) ([]models.PhotoRecord, error) {
	if _, err := s.LoadInitial(ctx); err != nil {
		return nil, err
	}
	for s.HasMore() {
		loaded, err := s.LoadMore(ctx)
		if err != nil {
			return s.Photos(), err
		}
		if !loaded {
			break
		}
	}
	return s.Photos(), nil
}

// Photos returns a copy of every loaded photo in listing order
func (s *PhotoSource) Photos() []models.PhotoRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.PhotoRecord(nil), s.photos...)
}

// HasMore reports whether another page is available
func (s *PhotoSource) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Loading reports whether a page request is in flight
func (s *PhotoSource) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// ListPage lists one filtered page without touching the source's state
func (s *PhotoSource) ListPage(ctx context.Context, token string, limit int) (*models.PhotoPage, error) {
	ctx, span := observability.StartServiceSpan(ctx, "PhotoSource", "ListPage")
	defer span.End()
	span.SetAttributes(observability.PhotoPrefix(s.prefix))

	page, err := s.store.List(ctx, s.prefix, limit, token)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	out := &models.PhotoPage{
		Photos:    make([]models.PhotoRecord, 0, len(page.Objects)),
		HasMore:   page.HasMore,
		NextToken: page.NextToken,
	}
	for _, obj := range page.Objects {
		if !models.IsImageKey(obj.Key) || models.IsThumbnailKey(obj.Key) {
			continue
		}
		rec, err := models.NewPhotoRecord(obj.Key, obj.LastModified, obj.Size, s.store.URL(obj.Key))
		if err != nil {
			continue
		}
		out.Photos = append(out.Photos, *rec)
	}

	observability.SetSuccess(span)
	return out, nil
}
