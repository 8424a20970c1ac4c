package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
)

// DefaultPresignTTL is how long a signed upload URL stays valid
const DefaultPresignTTL = 15 * time.Minute

// UploadService stores guest photos. Every check runs before the object
// store is contacted.
type UploadService struct {
	store      ObjectStore
	thumbnails *ThumbnailService
	exif       *EXIFService
	prefix     string
	maxBytes   int64
	presignTTL time.Duration
	metrics    *observability.BusinessMetrics
	now        func() time.Time
}

// UploadOptions configures an UploadService
type UploadOptions struct {
	// Prefix is the folder guest photos are stored under, e.g. "guestbook/"
	Prefix     string
	MaxBytes   int64
	PresignTTL time.Duration
	Metrics    *observability.BusinessMetrics
}

// NewUploadService creates a new UploadService
func NewUploadService(store ObjectStore, thumbnails *ThumbnailService, exif *EXIFService, opts UploadOptions) *UploadService {
	if opts.Prefix == "" {
		opts.Prefix = "guestbook/"
	}
	if !strings.HasSuffix(opts.Prefix, "/") {
		opts.Prefix += "/"
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = models.MaxUploadBytes
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = DefaultPresignTTL
	}
	if exif == nil {
		exif = NewEXIFService(nil)
	}
	return &UploadService{
		store:      store,
		thumbnails: thumbnails,
		exif:       exif,
		prefix:     opts.Prefix,
		maxBytes:   opts.MaxBytes,
		presignTTL: opts.PresignTTL,
		metrics:    opts.Metrics,
		now:        time.Now,
	}
}

// MaxBytes returns the upload size limit
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload validates and stores a photo and its thumbnail. size is the
// declared length; the bytes read are checked against the limit as well.
func (s *UploadService) Upload(ctx context.Context, contentType string, r io.Reader, size int64) (*models.UploadResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "UploadService", "Upload")
	defer span.End()

	if err := models.ValidateUpload(contentType, size, s.maxBytes); err != nil {
		return nil, s.rejected(ctx, span, err, size)
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		observability.RecordError(span, err)
		s.metrics.RecordUpload(ctx, "failed", size)
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, s.rejected(ctx, span, models.ErrFileTooLarge, int64(len(data)))
	}

	// The declared type comes from the browser; trust the bytes
	sniffed := http.DetectContentType(data)
	ext, ok := models.ExtensionForType(sniffed)
	if !ok {
		return nil, s.rejected(ctx, span, models.ErrUnsupportedMediaType, int64(len(data)))
	}
	if err := models.ValidateUpload(sniffed, int64(len(data)), s.maxBytes); err != nil {
		return nil, s.rejected(ctx, span, err, int64(len(data)))
	}

	info := s.exif.ExtractFromBytes(data)
	key := s.newKey(info.DateTaken, ext)
	span.SetAttributes(observability.PhotoKey(key))

	if err := s.store.Put(ctx, key, sniffed, bytes.NewReader(data), int64(len(data))); err != nil {
		observability.RecordError(span, err)
		observability.WithContext(ctx).WithFields(map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		}).Warn("Guest photo upload failed")
		s.metrics.RecordUpload(ctx, "failed", int64(len(data)))
		return nil, fmt.Errorf("%w: %w", models.ErrUploadTransport, err)
	}

	result := &models.UploadResult{
		Key:        key,
		URL:        s.store.URL(key),
		CapturedAt: info.DateTaken,
	}

	if s.thumbnails != nil {
		thumbKey, err := s.thumbnails.Generate(ctx, key, data)
		if err != nil {
			// the backfill retries missing thumbnails
			observability.AddEvent(span, "thumbnail_failed", observability.PhotoKey(key))
			observability.WithContext(ctx).WithFields(map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			}).Warn("Thumbnail generation failed")
		} else {
			result.ThumbnailURL = s.store.URL(thumbKey)
		}
	}

	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"key":  key,
		"size": len(data),
	}).Info("Guest photo stored")
	s.metrics.RecordUpload(ctx, "stored", int64(len(data)))
	observability.SetSuccess(span)

	return result, nil
}

// Presign validates the declared type and size and returns a signed URL
// the browser can PUT the photo to
func (s *UploadService) Presign(ctx context.Context, req models.PresignRequest) (*models.PresignResult, error) {
	ctx, span := observability.StartServiceSpan(ctx, "UploadService", "Presign")
	defer span.End()

	if err := models.ValidateUpload(req.ContentType, req.Size, s.maxBytes); err != nil {
		return nil, s.rejected(ctx, span, err, req.Size)
	}
	ext, _ := models.ExtensionForType(req.ContentType)
	key := s.newKey(nil, ext)

	uploadURL, err := s.store.PresignPut(ctx, key, req.ContentType, s.presignTTL)
	if err != nil {
		observability.RecordError(span, err)
		if errors.Is(err, models.ErrPresignFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", models.ErrUploadTransport, err)
	}

	observability.SetSuccess(span)
	return &models.PresignResult{
		Key:       key,
		UploadURL: uploadURL,
		PublicURL: s.store.URL(key),
		ExpiresAt: s.now().Add(s.presignTTL).UTC(),
	}, nil
}

// Finalize renders the thumbnail for a photo the browser uploaded through
// a presigned URL
func (s *UploadService) Finalize(ctx context.Context, key string) (*models.UploadResult, error) {
	clean := path.Clean(key)
	if clean != key || !strings.HasPrefix(key, s.prefix) || models.IsThumbnailKey(key) {
		return nil, models.ErrPathTraversal
	}
	if !models.IsImageKey(key) {
		return nil, models.ErrInvalidExtension
	}

	r, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrUploadTransport, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, models.ErrFileTooLarge
	}

	result := &models.UploadResult{
		Key:        key,
		URL:        s.store.URL(key),
		CapturedAt: s.exif.ExtractFromBytes(data).DateTaken,
	}
	if s.thumbnails != nil {
		thumbKey, err := s.thumbnails.Generate(ctx, key, data)
		if err != nil {
			return nil, err
		}
		result.ThumbnailURL = s.store.URL(thumbKey)
	}
	return result, nil
}

// newKey names a stored photo. A known capture time is written into the
// name so the timeline can date the photo without reading it.
func (s *UploadService) newKey(capturedAt *time.Time, ext string) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	if capturedAt != nil {
		return s.prefix + capturedAt.Format("20060102_150405") + "-" + suffix + ext
	}
	return fmt.Sprintf("%s%d-%s%s", s.prefix, s.now().UnixMilli(), suffix, ext)
}

func (s *UploadService) rejected(ctx context.Context, span trace.Span, err error, size int64) error {
	observability.RecordError(span, err)
	observability.WithContext(ctx).WithFields(map[string]interface{}{
		"size":  size,
		"error": err.Error(),
	}).Debug("Guest photo rejected")
	s.metrics.RecordUpload(ctx, "rejected", size)
	return err
}
