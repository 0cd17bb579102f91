package video

import (
	"context"
	"fmt"
	"image"
	"path"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"frame-sampler/decoder"
	"frame-sampler/metrics"
)

const DefaultImageFormat = "png"

// Sink persists encoded frames. Names are slash separated and relative to the
// sink's root, the extension selects the image format.
type Sink interface {
	Name() string
	// Prepare makes dir writable. It must not fail when dir already exists.
	Prepare(ctx context.Context, dir string) error
	WriteImage(ctx context.Context, name string, img image.Image) error
}

// Result is the outcome of processing one path.
type Result struct {
	Path   string
	Frames []Frame
	// Saved counts frames written by SaveFrames.
	Saved int
	Err   error
}

// Collection processes one or more videos sequentially. A failing path is
// recorded in its Result and does not stop the remaining paths.
type Collection struct {
	backend decoder.Backend
	logger  *zap.Logger
	metrics *metrics.Metrics
	paths   []string
}

func NewCollection(backend decoder.Backend, logger *zap.Logger, m *metrics.Metrics, paths ...string) (*Collection, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Collection{
		backend: backend,
		logger:  logger,
		metrics: m,
		paths:   append([]string(nil), paths...),
	}, nil
}

func (c *Collection) Paths() []string {
	return append([]string(nil), c.paths...)
}

// SaveFrames writes the sampled frames of every video to outputDir as
// {index}.{format}, index restarting at 0 for each video. The returned error
// joins the per-path errors.
func (c *Collection) SaveFrames(ctx context.Context, sink Sink, outputDir string, interval time.Duration, format string) ([]Result, error) {
	if format == "" {
		format = DefaultImageFormat
	}

	if err := sink.Prepare(ctx, outputDir); err != nil {
		return nil, fmt.Errorf("failed to prepare %s: %w", outputDir, err)
	}

	results := make([]Result, 0, len(c.paths))
	var errs error

	for _, p := range c.paths {
		if err := ctx.Err(); err != nil {
			return results, multierr.Append(errs, err)
		}

		done := c.metrics.TimeOperation("save")

		result := Result{Path: p}
		result.Err = WithReader(c.backend, c.logger, p, ReaderOptions{Interval: interval}, func(r *Reader) error {
			it := r.Frames()
			for it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}

				name := path.Join(outputDir, strconv.Itoa(result.Saved)+"."+format)
				if err := sink.WriteImage(ctx, name, it.Frame().Image); err != nil {
					return fmt.Errorf("%w %s: %w", ErrWrite, name, err)
				}
				result.Saved++
			}
			return it.Err()
		})

		done(result.Err)
		c.metrics.AddFramesExtracted("save", result.Saved)
		c.metrics.AddFramesWritten(sink.Name(), result.Saved)
		c.report(&result, "save")

		results = append(results, result)
		errs = multierr.Append(errs, result.Err)
	}

	return results, errs
}

// ExtractFrames runs batch extraction on every video, in path order.
func (c *Collection) ExtractFrames(ctx context.Context, interval time.Duration) ([]Result, error) {
	results := make([]Result, 0, len(c.paths))
	var errs error

	for _, p := range c.paths {
		if err := ctx.Err(); err != nil {
			return results, multierr.Append(errs, err)
		}

		done := c.metrics.TimeOperation("extract")

		result := Result{Path: p}
		result.Err = WithReader(c.backend, c.logger, p, ReaderOptions{Interval: interval}, func(r *Reader) error {
			frames, err := r.ExtractFrames()
			result.Frames = frames
			return err
		})

		done(result.Err)
		c.metrics.AddFramesExtracted("extract", len(result.Frames))
		c.report(&result, "extract")

		results = append(results, result)
		errs = multierr.Append(errs, result.Err)
	}

	return results, errs
}

func (c *Collection) report(result *Result, operation string) {
	if result.Err != nil {
		c.logger.Warn("video processing failed",
			zap.String("operation", operation),
			zap.String("path", result.Path),
			zap.Int("saved", result.Saved),
			zap.Int("frames", len(result.Frames)),
			zap.Error(result.Err))
		return
	}

	c.logger.Info("video processed",
		zap.String("operation", operation),
		zap.String("path", result.Path),
		zap.Int("saved", result.Saved),
		zap.Int("frames", len(result.Frames)))
}
