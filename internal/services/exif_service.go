package services

import (
	"bytes"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

// CaptureMetadata is the EXIF data a capture cares about
type CaptureMetadata struct {
	Orientation int
	DateTaken   *time.Time
	Latitude    *float64
	Longitude   *float64
	CameraModel string
}

// HasLocation reports whether GPS coordinates were present
func (m *CaptureMetadata) HasLocation() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// EXIFService reads capture metadata from image bytes
type EXIFService struct{}

// NewEXIFService creates a new EXIFService
func NewEXIFService() *EXIFService {
	return &EXIFService{}
}

// Extract never fails: images without EXIF yield orientation 1 and nothing else
func (s *EXIFService) Extract(data []byte) *CaptureMetadata {
	meta := &CaptureMetadata{Orientation: 1}

	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return meta
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if val, err := tag.Int(0); err == nil && val >= 1 && val <= 8 {
			meta.Orientation = val
		}
	}

	if tm, err := x.DateTime(); err == nil && !tm.IsZero() {
		meta.DateTaken = &tm
	}

	if lat, lng, err := x.LatLong(); err == nil {
		meta.Latitude = &lat
		meta.Longitude = &lng
	}

	if tag, err := x.Get(exif.Model); err == nil {
		if val, err := tag.StringVal(); err == nil {
			meta.CameraModel = val
		}
	}

	return meta
}

func init() {
	// maker notes carry orientation on some phone cameras
	exif.RegisterParsers(mknote.All...)
}
