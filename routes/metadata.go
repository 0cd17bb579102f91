package routes

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"frame-sampler/config"
	"frame-sampler/decoder"
	"frame-sampler/metrics"
	"frame-sampler/storage"
	"frame-sampler/validation"
	"frame-sampler/video"
)

type metadataResponse struct {
	Path string `json:"path"`
	video.Metadata
	// Duration is omitted when the frame rate is unusable.
	Duration *float64 `json:"duration,omitempty"`
	Codec    string   `json:"codec"`
}

func handleMetadataRequest(logger *zap.Logger, cache *storage.MetadataCache, config *config.Config, counters *metrics.Metrics, backend decoder.Backend) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path, status, err := validation.ValidateVideoPath(logger, c.Query("path"), config)
		if err != nil {
			return c.Status(status).SendString(err.Error())
		}

		key, keyErr := storage.Key(path)
		if keyErr == nil && cache != nil {
			if body, ok := cache.Get(key); ok {
				if counters != nil {
					counters.MetadataCached.Inc()
				}
				c.Set("Content-Type", fiber.MIMEApplicationJSON)
				c.Set("X-Cache", "hit")
				return c.Send(body)
			}
		}

		metadata, err := video.Probe(backend, path)
		if err != nil {
			logger.Error("failed to probe video", zap.String("path", path), zap.Error(err))
			return c.Status(errorStatus(err)).SendString(err.Error())
		}

		response := metadataResponse{Path: path, Metadata: metadata, Codec: metadata.FourCCString()}
		if metadata.HasDuration() {
			response.Duration = &metadata.Duration
		}

		body, err := json.Marshal(response)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString("failed to encode metadata")
		}

		if keyErr == nil && cache != nil {
			cache.Set(key, body)
		}

		c.Set("Content-Type", fiber.MIMEApplicationJSON)
		return c.Send(body)
	}
}
