package routes

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"frame-sampler/config"
	"frame-sampler/decoder"
	"frame-sampler/imagefmt"
	"frame-sampler/metrics"
	"frame-sampler/mime"
	"frame-sampler/pool"
	"frame-sampler/validation"
	"frame-sampler/video"
)

// handlePreviewRequest serves the first frame at or after the requested start time.
func handlePreviewRequest(logger *zap.Logger, config *config.Config, counters *metrics.Metrics, backend decoder.Backend) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, status, err, params := validation.ProcessPreviewContext(logger, c, config)
		if !ok {
			return c.Status(status).SendString(err.Error())
		}

		logger.Debug("preview request", zap.Stringer("params", params))

		done := counters.TimeOperation("preview")

		var frame video.Frame
		err = video.WithReader(backend, logger, params.Path, video.ReaderOptions{StartTime: params.StartTime}, func(r *video.Reader) error {
			it := r.Frames()
			if !it.Next() {
				if it.Err() != nil {
					return it.Err()
				}
				return fmt.Errorf("%w: %s", errNoFrame, params.StartTime)
			}
			frame = it.Frame()
			return nil
		})
		done(err)

		if err != nil {
			logger.Error("failed to extract frame", zap.String("path", params.Path), zap.Error(err))
			return c.Status(errorStatus(err)).SendString(err.Error())
		}
		counters.AddFramesExtracted("preview", 1)

		img := frame.Image
		if params.Width > 0 || params.Height > 0 {
			img = imagefmt.Resize(img, params.Width, params.Height, params.Interpolation)
		}
		if params.Scale > 0 {
			img = imagefmt.Rescale(img, params.Scale)
		}

		buf := pool.GetBuffer()
		defer pool.PutBuffer(buf)

		if err := imagefmt.Encode(buf, img, params.Format, params.Quality); err != nil {
			logger.Error("failed to encode frame", zap.String("format", params.Format), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).SendString("failed to encode frame")
		}

		c.Set("Content-Type", mime.ImageContentType(params.Format))
		c.Set("X-Frame-Index", fmt.Sprint(frame.Index))

		logger.Info("frame served",
			zap.String("path", absPath(params.Path)),
			zap.Int64("index", frame.Index),
			zap.String("format", params.Format))

		return c.Send(buf.Bytes())
	}
}
