package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weddingcard/server/internal/models"
)

// pagedStore wraps a local store and lets tests hold or fail listing calls
type pagedStore struct {
	*LocalObjectStore

	mu      sync.Mutex
	calls   int
	tokens  []string
	gate    chan struct{}
	failOn  map[string]error
	started chan struct{}
}

func newPagedStore(t *testing.T, keys ...string) *pagedStore {
	local := setupTestStorage(t)
	for _, k := range keys {
		putString(t, local, k, "x")
	}
	return &pagedStore{LocalObjectStore: local, failOn: map[string]error{}}
}

func (s *pagedStore) List(ctx context.Context, prefix string, maxKeys int, token string) (*ListPage, error) {
	s.mu.Lock()
	s.calls++
	s.tokens = append(s.tokens, token)
	gate, started := s.gate, s.started
	err := s.failOn[token]
	s.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return s.LocalObjectStore.List(ctx, prefix, maxKeys, token)
}

func (s *pagedStore) hold() (started chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	s.started = make(chan struct{}, 16)
	gate := s.gate
	return s.started, func() { close(gate) }
}

func (s *pagedStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func historyKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("history/2024-04/%03d.jpg", i)
	}
	return keys
}

func TestPhotoSource_LoadInitial(t *testing.T) {
	t.Run("filters non images and thumbnails", func(t *testing.T) {
		store := newPagedStore(t,
			"history/2024-04/a.jpg",
			"history/2024-04/thumb/a.jpg",
			"history/2024-04/notes.txt",
			"history/2024-05/b.HEIC",
			"guestbook/c.jpg",
		)
		src := NewPhotoSource(store, "history/", 0)

		photos, err := src.LoadInitial(context.Background())
		require.NoError(t, err)

		var keys []string
		for _, p := range photos {
			keys = append(keys, p.Key)
			assert.Equal(t, store.URL(p.Key), p.URL)
		}
		assert.Equal(t, []string{"history/2024-04/a.jpg", "history/2024-05/b.HEIC"}, keys)
		assert.False(t, src.HasMore())
	})

	t.Run("fetch error is wrapped", func(t *testing.T) {
		store := newPagedStore(t, historyKeys(3)...)
		boom := errors.New("bucket unavailable")
		store.failOn[""] = boom
		src := NewPhotoSource(store, "history/", 2)

		photos, err := src.LoadInitial(context.Background())
		assert.ErrorIs(t, err, models.ErrSourceFetch)
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, photos)
		assert.False(t, src.Loading())
	})

	t.Run("reload replaces earlier pages", func(t *testing.T) {
		store := newPagedStore(t, historyKeys(5)...)
		src := NewPhotoSource(store, "history/", 2)

		_, err := src.LoadAll(context.Background())
		require.NoError(t, err)
		require.Len(t, src.Photos(), 5)

		photos, err := src.LoadInitial(context.Background())
		require.NoError(t, err)
		assert.Len(t, photos, 2)
		assert.True(t, src.HasMore())
	})
}

func TestPhotoSource_LoadMore(t *testing.T) {
	t.Run("appends pages in order", func(t *testing.T) {
		store := newPagedStore(t, historyKeys(5)...)
		src := NewPhotoSource(store, "history/", 2)

		_, err := src.LoadInitial(context.Background())
		require.NoError(t, err)

		for src.HasMore() {
			loaded, err := src.LoadMore(context.Background())
			require.NoError(t, err)
			require.True(t, loaded)
		}

		photos := src.Photos()
		require.Len(t, photos, 5)
		for i, p := range photos {
			assert.Equal(t, fmt.Sprintf("history/2024-04/%03d.jpg", i), p.Key)
		}
	})

	t.Run("no request when nothing is left", func(t *testing.T) {
		store := newPagedStore(t, historyKeys(1)...)
		src := NewPhotoSource(store, "history/", 10)

		_, err := src.LoadInitial(context.Background())
		require.NoError(t, err)
		before := store.callCount()

		loaded, err := src.LoadMore(context.Background())
		require.NoError(t, err)
		assert.False(t, loaded)
		assert.Equal(t, before, store.callCount())
	})

	t.Run("no second request while one is in flight", func(t *testing.T) {
		store := newPagedStore(t, historyKeys(6)...)
		src := NewPhotoSource(store, "history/", 2)

		_, err := src.LoadInitial(context.Background())
		require.NoError(t, err)

		started, release := store.hold()

		done := make(chan error, 1)
		go func() {
			_, err := src.LoadMore(context.Background())
			done <- err
		}()

		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("load more never reached the store")
		}
		assert.True(t, src.Loading())

		calls := store.callCount()
		for i := 0; i < 5; i++ {
			loaded, err := src.LoadMore(context.Background())
			require.NoError(t, err)
			assert.False(t, loaded)
		}
		assert.Equal(t, calls, store.callCount())

		release()
		require.NoError(t, <-done)
		assert.False(t, src.Loading())
		assert.Len(t, src.Photos(), 4)
	})

	t.Run("failed page keeps loaded photos and can be retried", func(t *testing.T) {
		store := newPagedStore(t, historyKeys(4)...)
		src := NewPhotoSource(store, "history/", 2)

		_, err := src.LoadInitial(context.Background())
		require.NoError(t, err)

		store.mu.Lock()
		store.failOn["history/2024-04/001.jpg"] = errors.New("timeout")
		store.mu.Unlock()

		loaded, err := src.LoadMore(context.Background())
		assert.ErrorIs(t, err, models.ErrPagination)
		assert.False(t, loaded)
		assert.Len(t, src.Photos(), 2)
		assert.True(t, src.HasMore())
		assert.False(t, src.Loading())

		store.mu.Lock()
		delete(store.failOn, "history/2024-04/001.jpg")
		store.mu.Unlock()

		loaded, err = src.LoadMore(context.Background())
		require.NoError(t, err)
		assert.True(t, loaded)
		assert.Len(t, src.Photos(), 4)
	})

	t.Run("reload supersedes a page in flight", func(t *testing.T) {
		store := newPagedStore(t, historyKeys(4)...)
		src := NewPhotoSource(store, "history/", 2)

		_, err := src.LoadInitial(context.Background())
		require.NoError(t, err)

		started, release := store.hold()
		done := make(chan bool, 1)
		go func() {
			loaded, _ := src.LoadMore(context.Background())
			done <- loaded
		}()
		<-started

		reloaded := make(chan struct{})
		go func() {
			_, _ = src.LoadInitial(context.Background())
			close(reloaded)
		}()
		<-started

		release()
		<-reloaded
		assert.False(t, <-done)
		assert.Len(t, src.Photos(), 2)
	})
}

func TestPhotoSource_LoadAll(t *testing.T) {
	t.Run("walks every page", func(t *testing.T) {
		store := newPagedStore(t, historyKeys(7)...)
		src := NewPhotoSource(store, "history/", 3)

		photos, err := src.LoadAll(context.Background())
		require.NoError(t, err)
		assert.Len(t, photos, 7)
		assert.Equal(t, 3, store.callCount())
	})

	t.Run("returns partial results on a page failure", func(t *testing.T) {
		store := newPagedStore(t, historyKeys(5)...)
		store.failOn["history/2024-04/001.jpg"] = errors.New("timeout")
		src := NewPhotoSource(store, "history/", 2)

		photos, err := src.LoadAll(context.Background())
		assert.ErrorIs(t, err, models.ErrPagination)
		assert.Len(t, photos, 2)
	})
}
