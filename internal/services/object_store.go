package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/weddingcard/server/internal/config"
)

// ObjectInfo describes one stored object
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// ListPage is one page of a prefix listing
type ListPage struct {
	Objects   []ObjectInfo
	HasMore   bool
	NextToken string
}

// ObjectStore is the photo bucket. Keys use "/" separators.
type ObjectStore interface {
	// List returns up to maxKeys objects under prefix, continuing after token
	List(ctx context.Context, prefix string, maxKeys int, token string) (*ListPage, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Exists(ctx context.Context, key string) (bool, error)
	// PresignPut returns a URL the browser can PUT the object to directly
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	// URL is the public address of an object
	URL(key string) string
}

// NewObjectStore creates the backend selected in the storage config
func NewObjectStore(ctx context.Context, cfg config.Storage) (ObjectStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case "s3", "minio":
		return NewS3ObjectStore(ctx, cfg)
	case "gcs":
		return NewGCSObjectStore(ctx, cfg)
	case "", "local":
		return NewLocalObjectStore(cfg.LocalPath, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// objectURL joins a public base URL and a key. The key is escaped as one
// path segment, so "/" becomes %2F.
func objectURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(key)
}

// ListAll walks every page under prefix
func ListAll(ctx context.Context, store ObjectStore, prefix string, pageSize int) ([]ObjectInfo, error) {
	var all []ObjectInfo
	token := ""
	for {
		page, err := store.List(ctx, prefix, pageSize, token)
		if err != nil {
			return all, err
		}
		all = append(all, page.Objects...)
		if !page.HasMore || page.NextToken == "" {
			return all, nil
		}
		token = page.NextToken
	}
}
