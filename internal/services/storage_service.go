package services

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
)

// LocalObjectStore keeps photos on the local filesystem. Keys map to
// relative paths below basePath.
type LocalObjectStore struct {
	basePath  string
	publicURL string
}

// NewLocalObjectStore creates a LocalObjectStore rooted at basePath. Objects
// are served under publicURL (for example "/media").
func NewLocalObjectStore(basePath, publicURL string) (*LocalObjectStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}

	// Ensure directory exists
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, err
	}

	return &LocalObjectStore{
		basePath:  absPath,
		publicURL: publicURL,
	}, nil
}

// BasePath returns the absolute storage root
func (s *LocalObjectStore) BasePath() string {
	return s.basePath
}

// List returns keys under prefix in lexical order. The token is the last key
// of the previous page.
func (s *LocalObjectStore) List(ctx context.Context, prefix string, maxKeys int, token string) (*ListPage, error) {
	var all []ObjectInfo

	err := filepath.WalkDir(s.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) || strings.HasPrefix(filepath.Base(p), ".") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		all = append(all, ObjectInfo{Key: key, LastModified: info.ModTime().UTC(), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Key < all[j].Key })

	start := 0
	if token != "" {
		start = sort.Search(len(all), func(i int) bool { return all[i].Key > token })
	}
	end := len(all)
	if maxKeys > 0 && start+maxKeys < end {
		end = start + maxKeys
	}

	page := &ListPage{Objects: all[start:end]}
	if end < len(all) {
		page.HasMore = true
		page.NextToken = all[end-1].Key
	}
	return page, nil
}

// Get opens an object for reading
func (s *LocalObjectStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := s.GetFullPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if os.IsNotExist(err) {
		return nil, models.ErrObjectNotFound
	}
	return f, err
}

// Put writes an object, replacing any existing one
func (s *LocalObjectStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	fullPath, err := s.GetFullPath(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}

	// Write to a temp file first so readers never see a partial object
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return err
	}

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name()) // Clean up on error
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Chmod(fullPath, 0644)
}

// Exists checks if an object exists at key
func (s *LocalObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	fullPath, err := s.GetFullPath(key)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// PresignPut is not available on the local filesystem; uploads go through
// the server instead
func (s *LocalObjectStore) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return "", models.ErrPresignFailed
}

// URL is the public address of key
func (s *LocalObjectStore) URL(key string) string {
	return objectURL(s.publicURL, key)
}

// GetFullPath returns the absolute path for a key
func (s *LocalObjectStore) GetFullPath(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", models.ErrEmptyKey
	}

	// Normalize path separators
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	// Security check
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", err
	}

	if absPath != s.basePath && !strings.HasPrefix(absPath, s.basePath+string(os.PathSeparator)) {
		return "", models.ErrPathTraversal
	}

	return absPath, nil
}

// Watch reports changes below the storage root. Each receive on the
// returned channel means "something changed, list again"; bursts are
// merged. The channel is closed when ctx is done.
func (s *LocalObjectStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	err = filepath.WalkDir(s.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", s.basePath, err)
	}

	changes := make(chan struct{}, 1)

	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if strings.HasPrefix(filepath.Base(event.Name), ".") {
					continue
				}

				// New folders must be watched too
				if event.Has(fsnotify.Create) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						watcher.Add(event.Name)
					}
				}

				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				observability.WithField("error", err.Error()).Warn("Storage watcher error")
			}
		}
	}()

	return changes, nil
}
