// Package decodertest provides a deterministic in-memory decoder.Backend.
package decodertest

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"frame-sampler/decoder"
)

// Video describes a synthetic video served by Backend.
type Video struct {
	FrameRate float64
	// FrameCount is the count the capture reports.
	FrameCount int64
	// Frames is the number of frames that actually decode. Zero means FrameCount.
	Frames int64

	PixelFormat float64
	FourCC      int64
	Width       int
	Height      int

	// OpenErr is returned by Backend.Open.
	OpenErr error
	// ReadErr is returned by Read at ReadErrAt instead of a frame.
	ReadErr   error
	ReadErrAt int64
}

// Call is one recorded backend interaction.
type Call struct {
	Path string
	Op   string
	Arg  float64
}

// Backend serves registered videos. Frames are *image.Gray whose pixels hold
// the frame index modulo 256, see IndexOf.
type Backend struct {
	mu     sync.Mutex
	videos map[string]Video
	calls  []Call
	open   int
}

func NewBackend() *Backend {
	return &Backend{videos: make(map[string]Video)}
}

// Add registers a video under path.
func (b *Backend) Add(path string, v Video) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if v.Width == 0 {
		v.Width = 4
	}
	if v.Height == 0 {
		v.Height = 4
	}
	if v.Frames == 0 {
		v.Frames = v.FrameCount
	}

	b.videos[path] = v
}

// Calls returns a copy of every recorded interaction.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Call(nil), b.calls...)
}

// OpenCaptures reports how many captures are open.
func (b *Backend) OpenCaptures() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.open
}

func (b *Backend) record(path, op string, arg float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, Call{Path: path, Op: op, Arg: arg})
}

func (b *Backend) Open(path string) (decoder.Capture, error) {
	b.record(path, "open", 0)

	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.videos[path]
	if !ok {
		return nil, fmt.Errorf("%w %s: unknown video", decoder.ErrOpen, path)
	}
	if v.OpenErr != nil {
		return nil, fmt.Errorf("%w %s: %w", decoder.ErrOpen, path, v.OpenErr)
	}

	b.open++

	return &capture{backend: b, path: path, video: v}, nil
}

type capture struct {
	backend  *Backend
	path     string
	video    Video
	position int64
	closed   bool
}

func (c *capture) Property(p decoder.Property) float64 {
	c.backend.record(c.path, "property", float64(p))

	switch p {
	case decoder.PropFrameRate:
		return c.video.FrameRate
	case decoder.PropFrameCount:
		return float64(c.video.FrameCount)
	case decoder.PropPixelFormat:
		return c.video.PixelFormat
	case decoder.PropFourCC:
		return float64(c.video.FourCC)
	case decoder.PropWidth:
		return float64(c.video.Width)
	case decoder.PropHeight:
		return float64(c.video.Height)
	default:
		return 0
	}
}

func (c *capture) SetPositionMillis(ms float64) error {
	c.backend.record(c.path, "seek_ms", ms)

	if c.video.FrameRate <= 0 || math.IsNaN(c.video.FrameRate) {
		return errors.New("no frame rate")
	}

	c.position = int64(math.Floor(ms / 1000 * c.video.FrameRate))
	return nil
}

func (c *capture) SetPositionFrame(index int64) error {
	c.backend.record(c.path, "seek_frame", float64(index))

	if index < 0 {
		index = 0
	}
	c.position = index
	return nil
}

func (c *capture) PositionFrame() int64 {
	return c.position
}

func (c *capture) Read() (image.Image, error) {
	c.backend.record(c.path, "read", float64(c.position))

	if c.closed || c.position >= c.video.Frames {
		return nil, decoder.ErrEndOfStream
	}

	if c.video.ReadErr != nil && c.position == c.video.ReadErrAt {
		return nil, c.video.ReadErr
	}

	img := image.NewGray(image.Rect(0, 0, c.video.Width, c.video.Height))
	for i := range img.Pix {
		img.Pix[i] = uint8(c.position % 256)
	}

	c.position++
	return img, nil
}

func (c *capture) Close() error {
	c.backend.record(c.path, "close", 0)

	if c.closed {
		return nil
	}
	c.closed = true

	c.backend.mu.Lock()
	c.backend.open--
	c.backend.mu.Unlock()

	return nil
}

// IndexOf recovers the frame index (modulo 256) a synthetic frame was decoded at.
func IndexOf(img image.Image) int {
	return int(color.GrayModel.Convert(img.At(img.Bounds().Min.X, img.Bounds().Min.Y)).(color.Gray).Y)
}
