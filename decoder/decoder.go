package decoder

import (
	"errors"
	"image"
)

var (
	// ErrEndOfStream is returned by Capture.Read when no frame can be produced
	// at the current position.
	ErrEndOfStream = errors.New("end of stream")

	// ErrOpen is returned when a backend cannot open an existing file.
	ErrOpen = errors.New("failed to open video")
)

// Property identifies a numeric attribute a Capture reports.
type Property int

const (
	PropFrameRate Property = iota
	PropFrameCount
	PropPixelFormat
	PropFourCC
	PropWidth
	PropHeight
)

func (p Property) String() string {
	switch p {
	case PropFrameRate:
		return "frame_rate"
	case PropFrameCount:
		return "frame_count"
	case PropPixelFormat:
		return "pixel_format"
	case PropFourCC:
		return "fourcc"
	case PropWidth:
		return "width"
	case PropHeight:
		return "height"
	default:
		return "unknown"
	}
}

// Backend opens decoding sessions.
type Backend interface {
	Open(path string) (Capture, error)
}

// Capture is a single open decoding session. Implementations are not safe for
// concurrent use.
type Capture interface {
	Property(p Property) float64

	// SetPositionMillis moves the read position to the frame shown at ms.
	SetPositionMillis(ms float64) error
	// SetPositionFrame moves the read position to a zero-based frame index.
	SetPositionFrame(index int64) error
	// PositionFrame reports the index of the frame the next Read returns.
	PositionFrame() int64

	// Read decodes the frame at the current position and advances by one.
	Read() (image.Image, error)

	Close() error
}
