package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
)

// ErrBackfillRunning is returned when a backfill is requested while one is
// already in progress
var ErrBackfillRunning = errors.New("thumbnail backfill already running")

// MaintenanceStatus represents the current status of maintenance tasks
type MaintenanceStatus struct {
	Running         bool                   `json:"running"`
	LastRun         time.Time              `json:"lastRun,omitempty"`
	LastRunDuration string                 `json:"lastRunDuration,omitempty"`
	LastResult      *models.BackfillResult `json:"lastResult,omitempty"`
	LastError       string                 `json:"lastError,omitempty"`
}

// MaintenanceService generates missing thumbnails for every photo under
// the configured prefixes
type MaintenanceService struct {
	store      ObjectStore
	thumbnails *ThumbnailService
	prefixes   []string
	workers    int

	mu      sync.RWMutex
	running bool
	status  MaintenanceStatus
}

// NewMaintenanceService creates a MaintenanceService. A non-positive
// worker count runs one worker.
func NewMaintenanceService(store ObjectStore, thumbnails *ThumbnailService, workers int, prefixes ...string) *MaintenanceService {
	if workers <= 0 {
		workers = 1
	}
	return &MaintenanceService{
		store:      store,
		thumbnails: thumbnails,
		prefixes:   prefixes,
		workers:    workers,
	}
}

// GetStatus returns the current maintenance status
func (s *MaintenanceService) GetStatus() MaintenanceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// RunNow starts a backfill in the background
func (s *MaintenanceService) RunNow(ctx context.Context) {
	go func() {
		if _, err := s.Backfill(ctx); err != nil && !errors.Is(err, ErrBackfillRunning) {
			observability.WithField("error", err.Error()).Warn("Thumbnail backfill failed")
		}
	}()
}

// Backfill lists every photo and renders the thumbnails that do not exist
// yet. Single failures are counted and logged; only a listing failure
// aborts the run.
func (s *MaintenanceService) Backfill(ctx context.Context) (*models.BackfillResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrBackfillRunning
	}
	s.running = true
	s.status.Running = true
	s.mu.Unlock()

	ctx, span := observability.StartServiceSpan(ctx, "MaintenanceService", "Backfill")
	defer span.End()

	start := time.Now()
	observability.WithContext(ctx).Info("Running thumbnail backfill")

	result, err := s.backfill(ctx)

	duration := time.Since(start)
	s.mu.Lock()
	s.running = false
	s.status.Running = false
	s.status.LastRun = start
	s.status.LastRunDuration = duration.Round(time.Millisecond).String()
	s.status.LastResult = result
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	s.mu.Unlock()

	span.SetAttributes(observability.Duration(duration))
	if err != nil {
		observability.RecordError(span, err)
		return result, err
	}

	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"scanned":   result.Scanned,
		"generated": result.Generated,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
		"duration":  duration.Round(time.Millisecond).String(),
	}).Info("Thumbnail backfill completed")
	observability.SetSuccess(span)
	return result, nil
}

func (s *MaintenanceService) backfill(ctx context.Context) (*models.BackfillResult, error) {
	var scanned, generated, skipped, failed atomic.Int64

	var keys []string
	for _, prefix := range s.prefixes {
		objects, err := ListAll(ctx, s.store, prefix, 0)
		if err != nil {
			return snapshot(&scanned, &generated, &skipped, &failed), err
		}
		for _, obj := range objects {
			if models.IsImageKey(obj.Key) && !models.IsThumbnailKey(obj.Key) {
				keys = append(keys, obj.Key)
			}
		}
	}
	scanned.Store(int64(len(keys)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, key := range keys {
		g.Go(func() error {
			done, err := s.ensureThumbnail(gctx, key)
			switch {
			case err != nil:
				failed.Add(1)
				observability.WithContext(gctx).WithFields(map[string]interface{}{
					"key":   key,
					"error": err.Error(),
				}).Warn("Failed to generate thumbnail")
			case done:
				generated.Add(1)
			default:
				skipped.Add(1)
			}
			// a bad image must not cancel the rest of the run
			return nil
		})
	}

	_ = g.Wait()
	return snapshot(&scanned, &generated, &skipped, &failed), ctx.Err()
}

// ensureThumbnail reports whether a thumbnail had to be generated
func (s *MaintenanceService) ensureThumbnail(ctx context.Context, key string) (bool, error) {
	exists, err := s.store.Exists(ctx, models.ThumbnailKey(key))
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	r, err := s.store.Get(ctx, key)
	if err != nil {
		return false, err
	}
	data, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		return false, err
	}

	if _, err := s.thumbnails.Generate(ctx, key, data); err != nil {
		return false, err
	}
	return true, nil
}

func snapshot(scanned, generated, skipped, failed *atomic.Int64) *models.BackfillResult {
	return &models.BackfillResult{
		Scanned:   int(scanned.Load()),
		Generated: int(generated.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}
}
