package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
	_ "golang.org/x/image/webp"

	"github.com/weddingcard/server/internal/models"
	"github.com/weddingcard/server/internal/observability"
)

const (
	// DefaultThumbnailWidth is the width of generated thumbnails
	DefaultThumbnailWidth = 300
	// DefaultThumbnailQuality is the JPEG quality of generated thumbnails
	DefaultThumbnailQuality = 80
)

// ThumbnailService renders JPEG thumbnails and stores them next to their
// originals under a thumb/ segment
type ThumbnailService struct {
	store   ObjectStore
	exif    *EXIFService
	width   int
	quality int
}

// NewThumbnailService creates a ThumbnailService. Non-positive width or
// quality use the defaults.
func NewThumbnailService(store ObjectStore, exif *EXIFService, width, quality int) *ThumbnailService {
	if width <= 0 {
		width = DefaultThumbnailWidth
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultThumbnailQuality
	}
	if exif == nil {
		exif = NewEXIFService(nil)
	}
	return &ThumbnailService{store: store, exif: exif, width: width, quality: quality}
}

// Render decodes an image, applies its EXIF orientation and scales it down
// to the thumbnail width. Images already narrower are not enlarged.
func (s *ThumbnailService) Render(data []byte, name string) ([]byte, error) {
	img, err := decodeImage(data, name)
	if err != nil {
		return nil, err
	}

	img = applyOrientation(img, s.exif.ExtractFromBytes(data).Orientation)

	if img.Bounds().Dx() > s.width {
		img = imaging.Resize(img, s.width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate renders the thumbnail for key and stores it. It returns the
// thumbnail key.
func (s *ThumbnailService) Generate(ctx context.Context, key string, data []byte) (string, error) {
	ctx, span := observability.StartServiceSpan(ctx, "ThumbnailService", "Generate")
	defer span.End()
	span.SetAttributes(observability.PhotoKey(key))

	thumb, err := s.Render(data, key)
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}

	thumbKey := models.ThumbnailKey(key)
	if err := s.store.Put(ctx, thumbKey, "image/jpeg", bytes.NewReader(thumb), int64(len(thumb))); err != nil {
		observability.RecordError(span, err)
		return "", fmt.Errorf("failed to store thumbnail: %w", err)
	}

	observability.SetSuccess(span)
	return thumbKey, nil
}

func decodeImage(data []byte, name string) (image.Image, error) {
	if IsHEIC(name) {
		return decodeHEIC(data)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// Phones sometimes upload HEIC under a .jpg name
		if heic, herr := decodeHEIC(data); herr == nil {
			return heic, nil
		}
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// applyOrientation corrects image orientation based on EXIF data
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		// Transpose
		return imaging.Rotate270(imaging.FlipH(img))
	case 6:
		// Rotate 90 CW
		return imaging.Rotate270(img)
	case 7:
		// Transverse
		return imaging.Rotate90(imaging.FlipH(img))
	case 8:
		// Rotate 90 CCW
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// IsHEIC checks if the file is HEIC/HEIF format (requires special handling)
func IsHEIC(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".heic" || ext == ".heif"
}

// decodeHEIC decodes a HEIC/HEIF image using goheif (pure Go)
func decodeHEIC(data []byte) (image.Image, error) {
	img, err := goheif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode HEIC image: %w", err)
	}
	return img, nil
}
