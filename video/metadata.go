package video

import (
	"fmt"
	"math"
	"strings"

	"frame-sampler/decoder"
)

// Metadata is a snapshot of the properties a backend reports for a video.
type Metadata struct {
	FrameRate  float64 `json:"frameRate"`
	FrameCount int64   `json:"frameCount"`
	// Duration is FrameCount / FrameRate in seconds, NaN when the frame rate is
	// zero or not finite.
	Duration    float64 `json:"-"`
	PixelFormat float64 `json:"pixelFormat"`
	FourCC      int64   `json:"fourcc"`
	Width       int64   `json:"width"`
	Height      int64   `json:"height"`
}

func metadataFromCapture(capture decoder.Capture) Metadata {
	m := Metadata{
		FrameRate:   capture.Property(decoder.PropFrameRate),
		FrameCount:  int64(capture.Property(decoder.PropFrameCount)),
		PixelFormat: capture.Property(decoder.PropPixelFormat),
		FourCC:      int64(capture.Property(decoder.PropFourCC)),
		Width:       int64(capture.Property(decoder.PropWidth)),
		Height:      int64(capture.Property(decoder.PropHeight)),
	}

	m.Duration = math.NaN()
	if validFrameRate(m.FrameRate) {
		m.Duration = float64(m.FrameCount) / m.FrameRate
	}

	return m
}

// Probe opens path once, reads its metadata and closes it again.
func Probe(backend decoder.Backend, path string) (Metadata, error) {
	path, err := normalizePath(path)
	if err != nil {
		return Metadata{}, err
	}

	capture, err := backend.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer capture.Close()

	return metadataFromCapture(capture), nil
}

// HasDuration reports whether Duration is defined.
func (m Metadata) HasDuration() bool {
	return !math.IsNaN(m.Duration)
}

// FourCCString renders the codec tag as its four characters, e.g. "avc1".
func (m Metadata) FourCCString() string {
	var b strings.Builder
	for i := 0; i < 4; i++ {
		c := byte(m.FourCC >> (8 * i))
		if c < 0x20 || c > 0x7e {
			return fmt.Sprintf("0x%08x", uint32(m.FourCC))
		}
		b.WriteByte(c)
	}
	return b.String()
}
