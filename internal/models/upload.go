package models

import (
	"strings"
	"time"
)

// MaxUploadBytes is the largest guest photo accepted (10 MiB)
const MaxUploadBytes int64 = 10 * 1024 * 1024

// AllowedUploadTypes are the MIME types a guest may upload
var AllowedUploadTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ExtensionForType returns the file extension stored for a MIME type
func ExtensionForType(contentType string) (string, bool) {
	ext, ok := AllowedUploadTypes[normalizeContentType(contentType)]
	return ext, ok
}

// ValidateUpload checks type and size before any network call is made
func ValidateUpload(contentType string, size, maxBytes int64) error {
	if _, ok := ExtensionForType(contentType); !ok {
		return ErrUnsupportedMediaType
	}
	if maxBytes <= 0 {
		maxBytes = MaxUploadBytes
	}
	if size <= 0 {
		return ErrEmptyUpload
	}
	if size > maxBytes {
		return ErrFileTooLarge
	}
	return nil
}

func normalizeContentType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" || ct == "image/pjpeg" {
		ct = "image/jpeg"
	}
	return ct
}

// UploadResult is returned after a guest photo is stored
type UploadResult struct {
	Key          string     `json:"key"`
	URL          string     `json:"url"`
	ThumbnailURL string     `json:"thumbnailUrl,omitempty"`
	CapturedAt   *time.Time `json:"capturedAt,omitempty"`
}

// PresignRequest asks for a signed upload URL
type PresignRequest struct {
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// PresignResult is a signed URL the browser can PUT a photo to
type PresignResult struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	PublicURL string    `json:"publicUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadError describes a rejected or failed upload. Validation errors are
// reported before anything is sent to the object store.
type UploadError struct {
	Message    string
	Validation bool
}

func (e UploadError) Error() string {
	return e.Message
}

// Is lets every validation error match ErrUploadValidation
func (e UploadError) Is(target error) bool {
	t, ok := target.(UploadError)
	if !ok {
		return false
	}
	return e == t || (t == ErrUploadValidation && e.Validation)
}

var (
	ErrUploadValidation     = UploadError{Message: "upload rejected", Validation: true}
	ErrUnsupportedMediaType = UploadError{Message: "only jpeg, png, gif and webp images are accepted", Validation: true}
	ErrFileTooLarge         = UploadError{Message: "file size exceeds maximum allowed", Validation: true}
	ErrEmptyUpload          = UploadError{Message: "file is empty", Validation: true}
	ErrUploadTransport      = UploadError{Message: "upload failed, please try again"}
)
