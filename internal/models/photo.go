package models

import (
	"path"
	"strings"
	"time"
)

// ThumbnailSegment is the path segment thumbnails live under, relative to their original
const ThumbnailSegment = "thumb"

// ImageExtensions lists the object extensions treated as photos
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic"}

// PhotoRecord is a single image object listed from the object store
type PhotoRecord struct {
	Key          string    `json:"key"`
	LastModified time.Time `json:"lastModified"`
	SizeBytes    int64     `json:"size"`
	URL          string    `json:"url"`
}

// PhotoPage is one page of an object store listing
type PhotoPage struct {
	Photos    []PhotoRecord `json:"photos"`
	HasMore   bool          `json:"hasMore"`
	NextToken string        `json:"nextToken,omitempty"`
}

// NewPhotoRecord creates a PhotoRecord with validation
func NewPhotoRecord(key string, lastModified time.Time, sizeBytes int64, url string) (*PhotoRecord, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrEmptyKey
	}
	if sizeBytes < 0 {
		return nil, ErrInvalidFileSize
	}

	return &PhotoRecord{
		Key:          key,
		LastModified: lastModified.UTC(),
		SizeBytes:    sizeBytes,
		URL:          url,
	}, nil
}

// IsImageKey reports whether the object key has a known image extension
func IsImageKey(key string) bool {
	lower := strings.ToLower(key)
	for _, ext := range ImageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// IsThumbnailKey reports whether the key points inside a thumbnail folder
func IsThumbnailKey(key string) bool {
	dir := path.Dir(key)
	return path.Base(dir) == ThumbnailSegment
}

// ThumbnailKey returns the key of the thumbnail for an original object key.
// "history/2024-04/a.jpg" becomes "history/2024-04/thumb/a.jpg".
func ThumbnailKey(key string) string {
	if IsThumbnailKey(key) {
		return key
	}
	dir, file := path.Split(key)
	return dir + ThumbnailSegment + "/" + file
}

// OriginalKey reverses ThumbnailKey
func OriginalKey(key string) string {
	if !IsThumbnailKey(key) {
		return key
	}
	dir, file := path.Split(key)
	dir = strings.TrimSuffix(dir, ThumbnailSegment+"/")
	return dir + file
}

// Errors
type PhotoError struct {
	Message string
}

func (e PhotoError) Error() string {
	return e.Message
}

var (
	ErrEmptyKey         = PhotoError{"object key cannot be empty"}
	ErrInvalidFileSize  = PhotoError{"file size must not be negative"}
	ErrInvalidExtension = PhotoError{"file extension not allowed"}
	ErrPathTraversal    = PhotoError{"invalid path - path traversal detected"}
	ErrObjectNotFound   = PhotoError{"object not found"}
	ErrPresignFailed    = PhotoError{"object store cannot sign uploads"}

	// ErrSourceFetch marks a failed listing or subscription read
	ErrSourceFetch = PhotoError{"failed to load photos"}
	// ErrPagination marks a failed "load more" page; loaded pages are kept
	ErrPagination = PhotoError{"failed to load more photos"}
	// ErrImageLoad is reported per item when an image cannot be displayed
	ErrImageLoad = PhotoError{"image failed to load"}
)
