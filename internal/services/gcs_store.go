package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/weddingcard/server/internal/config"
	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
)

// GCSObjectStore keeps photos in a Google Cloud Storage bucket
type GCSObjectStore struct {
	client    *storage.Client
	bucket    *storage.BucketHandle
	name      string
	publicURL string
}

// NewGCSObjectStore connects to the configured bucket. Without a
// credentials file the application default credentials are used.
func NewGCSObjectStore(ctx context.Context, cfg config.Storage) (*GCSObjectStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	publicURL := cfg.PublicBaseURL
	if publicURL == "" || publicURL[0] == '/' {
		publicURL = "https://storage.googleapis.com/" + cfg.Bucket
	}

	return &GCSObjectStore{
		client:    client,
		bucket:    client.Bucket(cfg.Bucket),
		name:      cfg.Bucket,
		publicURL: publicURL,
	}, nil
}

// List returns one page of objects under prefix
func (s *GCSObjectStore) List(ctx context.Context, prefix string, maxKeys int, token string) (*ListPage, error) {
	ctx, span := observability.StartServiceSpan(ctx, "gcs", "List")
	defer span.End()

	if maxKeys <= 0 {
		maxKeys = 1000
	}

	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	pager := iterator.NewPager(it, maxKeys, token)

	var attrs []*storage.ObjectAttrs
	next, err := pager.NextPage(&attrs)
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("failed to list gs://%s/%s: %w", s.name, prefix, err)
	}

	page := &ListPage{HasMore: next != "", NextToken: next}
	for _, a := range attrs {
		page.Objects = append(page.Objects, ObjectInfo{
			Key:          a.Name,
			LastModified: a.Updated,
			Size:         a.Size,
		})
	}

	observability.SetSuccess(span)
	return page, nil
}

// Get opens an object for reading
func (s *GCSObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, models.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", s.name, key, err)
	}
	return r, nil
}

// Put uploads an object
func (s *GCSObjectStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	ctx, span := observability.StartServiceSpan(ctx, "gcs", "Put")
	defer span.End()

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		observability.RecordError(span, err)
		return fmt.Errorf("failed to copy to GCS object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		observability.RecordError(span, err)
		return fmt.Errorf("failed to close GCS writer for %s: %w", key, err)
	}

	observability.SetSuccess(span)
	return nil
}

// Exists checks whether key is present
func (s *GCSObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.bucket.Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat gs://%s/%s: %w", s.name, key, err)
}

// PresignPut signs a V4 PUT URL. The client must have credentials that can
// sign, such as a service account key.
func (s *GCSObjectStore) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	u, err := s.bucket.SignedURL(key, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      http.MethodPut,
		ContentType: contentType,
		Expires:     time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrPresignFailed, err)
	}
	return u, nil
}

// URL is the public address of key
func (s *GCSObjectStore) URL(key string) string {
	return objectURL(s.publicURL, key)
}

// Close releases the client
func (s *GCSObjectStore) Close() error {
	return s.client.Close()
}
