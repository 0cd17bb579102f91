package decoder

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strconv"
	"time"

	"github.com/asticode/go-astiav"
	"go.uber.org/zap"
)

// AstiavOptions tunes how FFmpeg probes an input before decoding.
type AstiavOptions struct {
	// ProbeSize is the number of bytes read to detect the container format.
	ProbeSize int64
	// AnalyzeDuration is how much of the stream is analysed for codec parameters.
	AnalyzeDuration time.Duration
}

// Astiav is a Backend decoding through FFmpeg.
type Astiav struct {
	options AstiavOptions
	logger  *zap.Logger
}

func NewAstiav(options AstiavOptions, logger *zap.Logger) *Astiav {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Astiav{options: options, logger: logger}
}

func (a *Astiav) Open(path string) (Capture, error) {
	c := &astiavCapture{logger: a.logger.With(zap.String("path", path)), streamIndex: -1, seekTarget: -1}

	if err := c.open(path, a.options); err != nil {
		c.Close()
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, path, err)
	}

	return c, nil
}

type astiavCapture struct {
	logger *zap.Logger

	formatContext *astiav.FormatContext
	codecContext  *astiav.CodecContext
	packet        *astiav.Packet
	frame         *astiav.Frame

	stream      *astiav.Stream
	streamIndex int

	frameRate  float64
	frameCount int64
	timeBase   float64
	startTime  int64

	// position is the index of the frame the next Read returns.
	position int64
	// seekTarget is the index decoding fast-forwards to after a seek, or -1.
	seekTarget int64
	draining   bool
	closed     bool
}

func (c *astiavCapture) open(path string, options AstiavOptions) error {
	c.formatContext = astiav.AllocFormatContext()
	if c.formatContext == nil {
		return errors.New("failed to allocate format context")
	}

	formatOptions := astiav.NewDictionary()
	defer formatOptions.Free()

	if options.AnalyzeDuration > 0 {
		formatOptions.Set("analyzeduration", strconv.FormatInt(options.AnalyzeDuration.Microseconds(), 10), 0)
	}
	if options.ProbeSize > 0 {
		formatOptions.Set("probesize", strconv.FormatInt(options.ProbeSize, 10), 0)
	}

	if err := c.formatContext.OpenInput(path, nil, formatOptions); err != nil {
		c.formatContext.Free()
		c.formatContext = nil
		return fmt.Errorf("failed to open input: %w", err)
	}

	if err := c.formatContext.FindStreamInfo(nil); err != nil {
		return fmt.Errorf("failed to find stream info: %w", err)
	}

	for _, stream := range c.formatContext.Streams() {
		if stream.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			c.stream = stream
			c.streamIndex = stream.Index()
			break
		}
	}

	if c.stream == nil {
		return errors.New("no video stream found")
	}

	codec := astiav.FindDecoder(c.stream.CodecParameters().CodecID())
	if codec == nil {
		return errors.New("failed to find decoder")
	}

	c.codecContext = astiav.AllocCodecContext(codec)
	if c.codecContext == nil {
		return errors.New("failed to allocate codec context")
	}

	if err := c.codecContext.FromCodecParameters(c.stream.CodecParameters()); err != nil {
		return fmt.Errorf("failed to copy codec parameters: %w", err)
	}

	if err := c.codecContext.Open(codec, nil); err != nil {
		return fmt.Errorf("failed to open codec: %w", err)
	}

	c.packet = astiav.AllocPacket()
	c.frame = astiav.AllocFrame()

	c.frameRate = rationalToFloat(c.stream.AvgFrameRate())
	if c.frameRate == 0 {
		c.frameRate = rationalToFloat(c.stream.RFrameRate())
	}

	c.timeBase = rationalToFloat(c.stream.TimeBase())
	c.startTime = c.stream.StartTime()
	if c.startTime == astiav.NoPtsValue {
		c.startTime = 0
	}

	c.frameCount = c.stream.NbFrames()
	if c.frameCount <= 0 {
		// Containers without a frame index: estimate from the duration.
		duration := float64(c.stream.Duration()) * c.timeBase
		if c.stream.Duration() <= 0 {
			duration = float64(c.formatContext.Duration()) / 1e6
		}
		c.frameCount = int64(math.Round(duration * c.frameRate))
	}

	return nil
}

func (c *astiavCapture) Property(p Property) float64 {
	params := c.stream.CodecParameters()

	switch p {
	case PropFrameRate:
		return c.frameRate
	case PropFrameCount:
		return float64(c.frameCount)
	case PropPixelFormat:
		return float64(params.PixelFormat())
	case PropFourCC:
		return float64(params.CodecTag())
	case PropWidth:
		return float64(params.Width())
	case PropHeight:
		return float64(params.Height())
	default:
		return 0
	}
}

func (c *astiavCapture) SetPositionMillis(ms float64) error {
	if c.frameRate <= 0 || math.IsNaN(c.frameRate) || math.IsInf(c.frameRate, 0) {
		return fmt.Errorf("cannot seek to %.0fms: frame rate %v", ms, c.frameRate)
	}

	return c.SetPositionFrame(int64(math.Floor(ms / 1000 * c.frameRate)))
}

func (c *astiavCapture) SetPositionFrame(index int64) error {
	if c.closed {
		return errors.New("capture is closed")
	}

	if index < 0 {
		index = 0
	}

	if index == c.position && c.seekTarget < 0 {
		return nil
	}

	if c.frameRate <= 0 || c.timeBase <= 0 {
		return fmt.Errorf("cannot seek to frame %d: stream has no timing information", index)
	}

	timestamp := c.startTime + int64(math.Floor(float64(index)/c.frameRate/c.timeBase))

	if err := c.formatContext.SeekFrame(c.streamIndex, timestamp, astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return fmt.Errorf("failed to seek to frame %d: %w", index, err)
	}

	c.codecContext.FlushBuffers()
	c.draining = false
	c.position = index
	c.seekTarget = index

	return nil
}

func (c *astiavCapture) PositionFrame() int64 {
	return c.position
}

func (c *astiavCapture) Read() (image.Image, error) {
	if c.closed {
		return nil, ErrEndOfStream
	}

	for {
		if err := c.decodeNext(); err != nil {
			return nil, err
		}

		index := c.indexOf(c.frame.Pts())
		if c.seekTarget >= 0 && index >= 0 && index < c.seekTarget {
			c.frame.Unref()
			continue
		}
		c.seekTarget = -1

		img, err := c.frameToImage()
		c.frame.Unref()
		if err != nil {
			c.logger.Debug("skipping undecodable frame", zap.Int64("index", c.position), zap.Error(err))
			continue
		}

		c.position++
		return img, nil
	}
}

// decodeNext leaves the next decoded frame of the video stream in c.frame.
func (c *astiavCapture) decodeNext() error {
	for {
		err := c.codecContext.ReceiveFrame(c.frame)
		if err == nil {
			return nil
		}

		if errors.Is(err, astiav.ErrEof) {
			return ErrEndOfStream
		}

		if !errors.Is(err, astiav.ErrEagain) {
			return fmt.Errorf("failed to receive frame: %w", err)
		}

		if c.draining {
			return ErrEndOfStream
		}

		if err := c.formatContext.ReadFrame(c.packet); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				c.draining = true
				if err := c.codecContext.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
					return fmt.Errorf("failed to flush decoder: %w", err)
				}
				continue
			}
			return fmt.Errorf("failed to read packet: %w", err)
		}

		if c.packet.StreamIndex() != c.streamIndex {
			c.packet.Unref()
			continue
		}

		err = c.codecContext.SendPacket(c.packet)
		c.packet.Unref()
		if err != nil && !errors.Is(err, astiav.ErrEagain) {
			c.logger.Debug("skipping corrupt packet", zap.Error(err))
		}
	}
}

func (c *astiavCapture) indexOf(pts int64) int64 {
	if pts == astiav.NoPtsValue {
		return -1
	}

	return int64(math.Round(float64(pts-c.startTime) * c.timeBase * c.frameRate))
}

func (c *astiavCapture) frameToImage() (image.Image, error) {
	if c.frame.Width() <= 0 || c.frame.Height() <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions: %dx%d", c.frame.Width(), c.frame.Height())
	}

	img, err := c.frame.Data().GuessImageFormat()
	if err != nil {
		return nil, fmt.Errorf("failed to guess image format: %w", err)
	}

	if err := c.frame.Data().ToImage(img); err != nil {
		return nil, fmt.Errorf("failed to convert frame to image: %w", err)
	}

	return img, nil
}

func (c *astiavCapture) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.frame != nil {
		c.frame.Free()
	}
	if c.packet != nil {
		c.packet.Free()
	}
	if c.codecContext != nil {
		c.codecContext.Free()
	}
	if c.formatContext != nil {
		c.formatContext.CloseInput()
		c.formatContext.Free()
	}

	return nil
}

func rationalToFloat(r astiav.Rational) float64 {
	if r.Den() == 0 {
		return 0
	}

	return float64(r.Num()) / float64(r.Den())
}
