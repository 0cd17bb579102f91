package config

import (
	"github.com/caarlos0/env/v11"
)

type Config struct {
	Address  string `json:"address" env:"APP_ADDRESS" envDefault:":3000"`
	Prefork  bool   `json:"prefork" env:"APP_PREFORK"`
	Metrics  bool   `json:"metrics" env:"APP_METRICS" envDefault:"true"`
	LogLevel string `json:"logLevel" env:"APP_LOG_LEVEL" envDefault:"info"`

	// AllowedPaths are wildcard patterns input videos must match. Empty allows any path.
	AllowedPaths []string `json:"allowedPaths" env:"APP_ALLOWED_PATHS"`
	OutputRoot   string   `json:"outputRoot" env:"APP_OUTPUT_ROOT" envDefault:"./frames"`

	DefaultFormat  string `json:"defaultFormat" env:"APP_DEFAULT_FORMAT" envDefault:"png"`
	DefaultQuality int    `json:"defaultQuality" env:"APP_DEFAULT_QUALITY" envDefault:"85"`

	CacheNumCounters int64 `json:"cacheNumCounters" env:"APP_CACHE_NUM_COUNTERS" envDefault:"100000"`
	CacheMaxCost     int64 `json:"cacheMaxCost" env:"APP_CACHE_MAX_COST" envDefault:"10000"`
	CacheBufferItems int64 `json:"cacheBufferItems" env:"APP_CACHE_BUFFER_ITEMS" envDefault:"64"`
	CacheTTL         int   `json:"cacheTTL" env:"APP_CACHE_TTL" envDefault:"1800"`

	ProbeSize       int64 `json:"probeSize" env:"APP_PROBE_SIZE" envDefault:"50000000"`
	AnalyzeDuration int64 `json:"analyzeDuration" env:"APP_ANALYZE_DURATION" envDefault:"100000000"` // microseconds

	S3Enabled   bool   `json:"s3Enabled" env:"APP_S3_ENABLED"`
	S3Endpoint  string `json:"s3Endpoint" env:"APP_S3_ENDPOINT"`
	S3AccessKey string `json:"-" env:"APP_S3_ACCESS_KEY"`
	S3SecretKey string `json:"-" env:"APP_S3_SECRET_KEY"`
	S3UseSSL    bool   `json:"s3UseSSL" env:"APP_S3_USE_SSL"`
	S3Bucket    string `json:"s3Bucket" env:"APP_S3_BUCKET"`
	S3Prefix    string `json:"s3Prefix" env:"APP_S3_PREFIX"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}
