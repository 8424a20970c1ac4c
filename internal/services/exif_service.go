package services

import (
	"bytes"
	"io"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// CaptureInfo is the EXIF metadata the timeline cares about
type CaptureInfo struct {
	// DateTaken is nil when the camera did not record it
	DateTaken   *time.Time
	Orientation int
	Width       int
	Height      int
}

// EXIFService reads capture metadata from uploaded images
type EXIFService struct {
	loc *time.Location
}

// NewEXIFService creates an EXIFService. Camera clocks carry no zone, so
// DateTaken is interpreted in loc; nil means time.Local.
func NewEXIFService(loc *time.Location) *EXIFService {
	if loc == nil {
		loc = time.Local
	}
	return &EXIFService{loc: loc}
}

// ExtractFromBytes reads capture metadata from image bytes
func (s *EXIFService) ExtractFromBytes(data []byte) *CaptureInfo {
	return s.ExtractFromReader(bytes.NewReader(data))
}

// ExtractFromReader reads capture metadata. Images without EXIF (PNG, GIF,
// most WebP) yield an upright orientation and no date.
func (s *EXIFService) ExtractFromReader(r io.Reader) *CaptureInfo {
	info := &CaptureInfo{Orientation: 1}

	x, err := exif.Decode(r)
	if err != nil {
		return info
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if val, err := tag.Int(0); err == nil && val >= 1 && val <= 8 {
			info.Orientation = val
		}
	}

	if tag, err := x.Get(exif.PixelXDimension); err == nil {
		if val, err := tag.Int(0); err == nil {
			info.Width = val
		}
	}
	if tag, err := x.Get(exif.PixelYDimension); err == nil {
		if val, err := tag.Int(0); err == nil {
			info.Height = val
		}
	}

	if tm, err := x.DateTime(); err == nil && tm.Year() >= MinInferredYear {
		// goexif parses in time.Local unless an offset tag is present
		local := time.Date(tm.Year(), tm.Month(), tm.Day(), tm.Hour(), tm.Minute(), tm.Second(), 0, s.loc)
		info.DateTaken = &local
	}

	return info
}
