package routes

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"frame-sampler/config"
	"frame-sampler/decoder"
	"frame-sampler/metrics"
	"frame-sampler/storage"
	"frame-sampler/validation"
	"frame-sampler/video"
)

// RegisterVideoRoutes sets up the frame sampling routes. s3sink may be nil.
func RegisterVideoRoutes(logger *zap.Logger, cache *storage.MetadataCache, config *config.Config, app *fiber.App, counters *metrics.Metrics, backend decoder.Backend, s3sink *storage.S3Sink) {
	app.Get("/videos/metadata", handleMetadataRequest(logger, cache, config, counters, backend))
	app.Get("/videos/frame", handlePreviewRequest(logger, config, counters, backend))
	app.Post("/videos/frames", handleSaveFramesRequest(logger, config, counters, backend, s3sink))
	app.Post("/videos/frames/extract", handleExtractFramesRequest(logger, config, counters, backend))
}

var errNoFrame = errors.New("no frame at requested time")

type pathResult struct {
	Path    string  `json:"path"`
	Saved   int     `json:"saved,omitempty"`
	Indices []int64 `json:"indices,omitempty"`
	Error   string  `json:"error,omitempty"`
}

//#region handleSaveFramesRequest

func handleSaveFramesRequest(logger *zap.Logger, config *config.Config, counters *metrics.Metrics, backend decoder.Backend, s3sink *storage.S3Sink) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req validation.FramesRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("invalid request body")
		}

		ok, status, err, params := validation.ProcessFramesRequest(logger, &req, config)
		if !ok {
			return c.Status(status).SendString(err.Error())
		}

		logger.Info("save frames request received",
			zap.Strings("paths", params.Paths),
			zap.Duration("interval", params.Interval),
			zap.String("format", params.Format),
			zap.String("outputDir", params.OutputDir),
			zap.String("sink", params.Sink))

		var sink video.Sink = storage.NewDiskSink(config.OutputRoot, config.DefaultQuality)
		if params.Sink == "s3" {
			if s3sink == nil {
				return c.Status(fiber.StatusServiceUnavailable).SendString("s3 storage is not configured")
			}
			sink = s3sink
		}

		collection, err := video.NewCollection(backend, logger, counters, params.Paths...)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}

		results, err := collection.SaveFrames(c.UserContext(), sink, params.OutputDir, params.Interval, params.Format)
		if results == nil && err != nil {
			logger.Error("failed to prepare output", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).SendString("failed to prepare output directory")
		}

		return c.Status(resultsStatus(err)).JSON(fiber.Map{
			"outputDir": params.OutputDir,
			"format":    params.Format,
			"results":   toPathResults(results),
		})
	}
}

//#endregion

//#region handleExtractFramesRequest

func handleExtractFramesRequest(logger *zap.Logger, config *config.Config, counters *metrics.Metrics, backend decoder.Backend) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req validation.FramesRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("invalid request body")
		}

		ok, status, err, params := validation.ProcessFramesRequest(logger, &req, config)
		if !ok {
			return c.Status(status).SendString(err.Error())
		}

		collection, err := video.NewCollection(backend, logger, counters, params.Paths...)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(err.Error())
		}

		results, err := collection.ExtractFrames(c.UserContext(), params.Interval)

		return c.Status(resultsStatus(err)).JSON(fiber.Map{
			"results": toPathResults(results),
		})
	}
}

//#endregion

func resultsStatus(err error) int {
	if err != nil {
		return fiber.StatusMultiStatus
	}
	return fiber.StatusOK
}

func toPathResults(results []video.Result) []pathResult {
	out := make([]pathResult, 0, len(results))
	for _, result := range results {
		r := pathResult{Path: result.Path, Saved: result.Saved}
		for _, frame := range result.Frames {
			r.Indices = append(r.Indices, frame.Index)
		}
		if result.Err != nil {
			r.Error = result.Err.Error()
		}
		out = append(out, r)
	}
	return out
}

// errorStatus maps sampling errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, video.ErrFileNotFound), errors.Is(err, errNoFrame):
		return fiber.StatusNotFound
	case errors.Is(err, decoder.ErrOpen):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, video.ErrInvalidFrameRate):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
