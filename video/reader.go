package video

import (
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"frame-sampler/decoder"
)

// Frame is a decoded image and the index it was decoded at.
type Frame struct {
	Index int64
	Image image.Image
}

type ReaderOptions struct {
	// Interval between sampled frames. Zero samples every frame.
	Interval time.Duration
	// StartTime is where Frames begins reading.
	StartTime time.Duration
}

// Reader samples frames from a single video. Metadata is read at construction,
// the decoding session is held between Open and Close.
type Reader struct {
	backend decoder.Backend
	logger  *zap.Logger

	path      string
	interval  time.Duration
	startTime time.Duration
	metadata  Metadata

	capture decoder.Capture
}

// NewReader fails with ErrFileNotFound before touching the backend when path
// does not exist.
func NewReader(backend decoder.Backend, logger *zap.Logger, path string, options ReaderOptions) (*Reader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	path, err := normalizePath(path)
	if err != nil {
		return nil, err
	}

	metadata, err := Probe(backend, path)
	if err != nil {
		return nil, err
	}

	logger.Debug("video metadata",
		zap.String("path", path),
		zap.Float64("frameRate", metadata.FrameRate),
		zap.Int64("frameCount", metadata.FrameCount),
		zap.Int64("width", metadata.Width),
		zap.Int64("height", metadata.Height))

	return &Reader{
		backend:   backend,
		logger:    logger,
		path:      path,
		interval:  options.Interval,
		startTime: options.StartTime,
		metadata:  metadata,
	}, nil
}

// WithReader opens a reader for path, runs fn and always closes the reader.
// An error from fn takes precedence over the close error, both are returned.
func WithReader(backend decoder.Backend, logger *zap.Logger, path string, options ReaderOptions, fn func(r *Reader) error) (err error) {
	r, err := NewReader(backend, logger, path, options)
	if err != nil {
		return err
	}

	if err := r.Open(); err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, r.Close())
	}()

	return fn(r)
}

func (r *Reader) Path() string { return r.path }

func (r *Reader) Metadata() Metadata { return r.metadata }

// Len returns the frame count reported by the backend.
func (r *Reader) Len() int64 { return r.metadata.FrameCount }

func (r *Reader) Interval() time.Duration { return r.interval }

// SetInterval changes the interval used by the next step computation.
func (r *Reader) SetInterval(interval time.Duration) { r.interval = interval }

// Step computes the sampling step for the current interval.
func (r *Reader) Step() (int64, error) {
	return ComputeStep(r.metadata.FrameRate, r.interval)
}

// Open acquires the decoding session and seeks to the start time.
func (r *Reader) Open() error {
	if r.capture != nil {
		return nil
	}

	capture, err := r.backend.Open(r.path)
	if err != nil {
		return err
	}

	if r.startTime > 0 {
		if err := capture.SetPositionMillis(float64(r.startTime.Milliseconds())); err != nil {
			capture.Close()
			return fmt.Errorf("failed to seek %s to %s: %w", r.path, r.startTime, err)
		}
	}

	r.capture = capture
	return nil
}

// Close releases the decoding session. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.capture == nil {
		return nil
	}

	capture := r.capture
	r.capture = nil

	return capture.Close()
}

// ExtractFrames decodes the frames at indices 0, step, 2*step, ... below the
// frame count and releases the session afterwards. A failed read ends the
// extraction with the frames decoded so far and no error.
func (r *Reader) ExtractFrames() (frames []Frame, err error) {
	if r.capture == nil {
		return nil, ErrClosed
	}
	defer func() {
		err = multierr.Append(err, r.Close())
	}()

	step, err := r.Step()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.path, err)
	}

	for index := int64(0); index < r.metadata.FrameCount; index += step {
		if err := r.capture.SetPositionFrame(index); err != nil {
			return frames, fmt.Errorf("failed to seek %s to frame %d: %w", r.path, index, err)
		}

		img, err := r.capture.Read()
		if errors.Is(err, decoder.ErrEndOfStream) {
			r.logger.Debug("stream ended before reported frame count",
				zap.String("path", r.path),
				zap.Int64("index", index),
				zap.Int64("frameCount", r.metadata.FrameCount))
			break
		}
		if err != nil {
			r.logger.Warn("failed to read frame, keeping frames decoded so far",
				zap.String("path", r.path),
				zap.Int64("index", index),
				zap.Int("frames", len(frames)),
				zap.Error(err))
			break
		}

		frames = append(frames, Frame{Index: index, Image: img})
	}

	return frames, nil
}

// Frames returns an iterator reading from the current position. Between frames
// it moves the position, which already points past the frame just read, forward
// by the sampling step. The iterator cannot be restarted.
func (r *Reader) Frames() *FrameIterator {
	return &FrameIterator{reader: r}
}

// FrameIterator pulls sampled frames one at a time:
//
//	it := r.Frames()
//	for it.Next() {
//		frame := it.Frame()
//	}
//	if err := it.Err(); err != nil {
//	}
type FrameIterator struct {
	reader  *Reader
	started bool
	frame   Frame
	err     error
	done    bool
}

// Next decodes the next sampled frame. It returns false once a read fails or on error.
func (it *FrameIterator) Next() bool {
	if it.done {
		return false
	}

	capture := it.reader.capture
	if capture == nil {
		return it.stop(ErrClosed)
	}

	step, err := it.reader.Step()
	if err != nil {
		return it.stop(fmt.Errorf("%s: %w", it.reader.path, err))
	}

	if it.started && it.reader.interval > 0 {
		next := capture.PositionFrame()
		if step > math.MaxInt64-next {
			next = math.MaxInt64
		} else {
			next += step
		}
		if err := capture.SetPositionFrame(next); err != nil {
			return it.stop(fmt.Errorf("failed to seek %s to frame %d: %w", it.reader.path, next, err))
		}
	}

	index := capture.PositionFrame()

	img, err := capture.Read()
	if errors.Is(err, decoder.ErrEndOfStream) {
		return it.stop(nil)
	}
	if err != nil {
		it.reader.logger.Warn("failed to read frame, ending iteration",
			zap.String("path", it.reader.path),
			zap.Int64("index", index),
			zap.Error(err))
		return it.stop(nil)
	}

	it.started = true
	it.frame = Frame{Index: index, Image: img}
	return true
}

func (it *FrameIterator) stop(err error) bool {
	it.done = true
	it.err = err
	it.frame = Frame{}
	return false
}

// Frame returns the frame decoded by the last successful Next.
func (it *FrameIterator) Frame() Frame { return it.frame }

// Err returns the error that stopped iteration, nil when the stream ran out.
func (it *FrameIterator) Err() error { return it.err }

func normalizePath(path string) (string, error) {
	path = filepath.Clean(filepath.FromSlash(path))

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	return path, nil
}
