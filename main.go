package main

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"frame-sampler/config"
	"frame-sampler/decoder"
	"frame-sampler/metrics"
	"frame-sampler/routes"
	"frame-sampler/storage"
)

var logger *zap.Logger

func main() {
	config, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err = newLogger(config.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	cache, err := storage.NewMetadataCache(config)
	if err != nil {
		logger.Fatal(err.Error())
	}
	defer cache.Close()

	s3sink, err := storage.NewS3Sink(config, logger)
	if err != nil {
		logger.Fatal(err.Error())
	}

	backend := decoder.NewAstiav(decoder.AstiavOptions{
		ProbeSize:       config.ProbeSize,
		AnalyzeDuration: time.Duration(config.AnalyzeDuration) * time.Microsecond,
	}, logger)

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		Prefork:               config.Prefork,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	counters := metrics.InitializeMetrics(registry, prometheus.Labels{"service": "frame-sampler"})

	if config.Metrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	app.Use(healthcheck.New())
	app.Use(compress.New())

	routes.RegisterVideoRoutes(logger, cache, config, app, counters, backend, s3sink)

	logger.Info("server starting",
		zap.String("address", config.Address),
		zap.String("outputRoot", config.OutputRoot),
		zap.Bool("s3", s3sink != nil))

	if err := app.Listen(config.Address); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg.Level = zap.NewAtomicLevelAt(parsed)

	return cfg.Build()
}
