package models

import (
	"image"
	"image/color"
	"time"
)

// Frame is one encoded JPEG published to viewers. Data must not be modified
// after the frame has been published.
type Frame struct {
	Data       []byte
	Version    uint64
	Width      int
	Height     int
	CapturedAt time.Time
}

// RawFrame is a decoded camera frame owned by the capture loop for the
// duration of one iteration.
type RawFrame interface {
	Size() image.Point
	DrawRegion(box image.Rectangle, c color.RGBA, label string) error
	EncodeJPEG() ([]byte, error)
	Close() error
}
