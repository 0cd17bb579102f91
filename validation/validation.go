package validation

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/IGLOU-EU/go-wildcard/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"frame-sampler/config"
	"frame-sampler/imagefmt"
	"frame-sampler/mime"
)

// FramesRequest is the body of the frame saving and extraction routes.
type FramesRequest struct {
	Paths []string `json:"paths"`
	// Interval is in seconds ("1.5") or a Go duration ("1500ms"). Empty samples every frame.
	Interval  string `json:"interval"`
	Format    string `json:"format"`
	OutputDir string `json:"outputDir"`
	Sink      string `json:"sink"`
}

// FramesContext is a validated FramesRequest.
type FramesContext struct {
	Paths     []string
	Interval  time.Duration
	Format    string
	OutputDir string
	Sink      string
}

// PreviewContext holds the parameters of a single frame preview.
type PreviewContext struct {
	Path      string
	StartTime time.Duration

	Format  string
	Quality int

	Width         int
	Height        int
	Scale         float64
	Interpolation resize.InterpolationFunction
}

func (c *PreviewContext) String() string {
	return fmt.Sprintf("path=%s;t=%s;format=%s;quality=%d;width=%d;height=%d;scale=%f;interpolation=%d",
		c.Path, c.StartTime, c.Format, c.Quality, c.Width, c.Height, c.Scale, c.Interpolation)
}

// ParseDuration accepts plain seconds ("2", "0.5") or a Go duration ("500ms").
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}

	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		if seconds < 0 {
			return 0, fmt.Errorf("negative duration: %s", value)
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %s", value)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration: %s", value)
	}
	return d, nil
}

// PathAllowed reports whether path matches one of patterns. No patterns allows everything.
func PathAllowed(path string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}

	for _, pattern := range patterns {
		if pattern == path {
			return true
		}
	}

	for _, pattern := range patterns {
		if strings.Contains(pattern, "*") && wildcard.Match(pattern, path) {
			return true
		}
	}

	return false
}

// ValidateVideoPath cleans path and checks it against the allowed patterns.
func ValidateVideoPath(logger *zap.Logger, path string, config *config.Config) (string, int, error) {
	if strings.TrimSpace(path) == "" {
		return "", fiber.StatusBadRequest, fmt.Errorf("path is required")
	}

	cleaned := filepath.Clean(path)
	if !PathAllowed(cleaned, config.AllowedPaths) {
		logger.Debug("path rejected", zap.String("path", cleaned))
		return "", fiber.StatusForbidden, fmt.Errorf("path '%s' is not allowed", cleaned)
	}

	if !mime.IsVideoFile(cleaned) {
		return "", fiber.StatusUnsupportedMediaType, fmt.Errorf("unsupported video file: %s", filepath.Base(cleaned))
	}

	return cleaned, fiber.StatusOK, nil
}

// ValidateOutputDir keeps dir relative and inside the output root.
func ValidateOutputDir(dir string) (string, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return ".", nil
	}

	if filepath.IsAbs(dir) || strings.HasPrefix(dir, "/") {
		return "", fmt.Errorf("output directory must be relative")
	}

	cleaned := filepath.ToSlash(filepath.Clean(dir))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("output directory escapes the output root")
	}

	return cleaned, nil
}

func ProcessFramesRequest(logger *zap.Logger, req *FramesRequest, config *config.Config) (ok bool, status int, err error, params *FramesContext) {
	if len(req.Paths) == 0 {
		return false, fiber.StatusBadRequest, fmt.Errorf("at least one path is required"), nil
	}

	paths := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		cleaned, status, err := ValidateVideoPath(logger, p, config)
		if err != nil {
			return false, status, err, nil
		}
		paths = append(paths, cleaned)
	}

	interval, err := ParseDuration(req.Interval)
	if err != nil {
		return false, fiber.StatusBadRequest, fmt.Errorf("invalid interval: %w", err), nil
	}

	format := imagefmt.Normalize(req.Format)
	if format == "" {
		format = imagefmt.Normalize(config.DefaultFormat)
	}
	if !imagefmt.IsSupported(format) {
		return false, fiber.StatusBadRequest, fmt.Errorf("unsupported image format: %s", format), nil
	}

	outputDir, err := ValidateOutputDir(req.OutputDir)
	if err != nil {
		return false, fiber.StatusBadRequest, err, nil
	}

	sink := req.Sink
	if sink == "" {
		sink = "disk"
	}
	if sink != "disk" && sink != "s3" {
		return false, fiber.StatusBadRequest, fmt.Errorf("unknown sink: %s", sink), nil
	}

	return true, fiber.StatusOK, nil, &FramesContext{
		Paths:     paths,
		Interval:  interval,
		Format:    format,
		OutputDir: outputDir,
		Sink:      sink,
	}
}

func ProcessPreviewContext(logger *zap.Logger, c *fiber.Ctx, config *config.Config) (ok bool, status int, err error, params *PreviewContext) {
	path, status, err := ValidateVideoPath(logger, c.Query("path"), config)
	if err != nil {
		return false, status, err, nil
	}

	startTime, err := ParseDuration(c.Query("t"))
	if err != nil {
		return false, fiber.StatusBadRequest, fmt.Errorf("invalid start time: %w", err), nil
	}

	format := imagefmt.Normalize(c.Query("format", "jpeg"))
	if !imagefmt.IsSupported(format) {
		return false, fiber.StatusBadRequest, fmt.Errorf("unsupported image format: %s", format), nil
	}

	quality := c.QueryInt("q", config.DefaultQuality)
	if quality < 1 || quality > 100 {
		return false, fiber.StatusBadRequest, fmt.Errorf("quality must be between 1 and 100"), nil
	}

	width := c.QueryInt("w", 0)
	height := c.QueryInt("h", 0)
	if width < 0 || height < 0 {
		return false, fiber.StatusBadRequest, fmt.Errorf("width and height must not be negative"), nil
	}

	scale := c.QueryFloat("s", 0)
	if scale < 0 || scale > 1 {
		return false, fiber.StatusBadRequest, fmt.Errorf("scale must be between 0 and 1"), nil
	}

	interpolation := c.QueryInt("i", int(resize.Lanczos3))
	if interpolation < 0 || interpolation > 5 {
		return false, fiber.StatusBadRequest, fmt.Errorf("interpolation must be between 0 and 5"), nil
	}

	return true, fiber.StatusOK, nil, &PreviewContext{
		Path:          path,
		StartTime:     startTime,
		Format:        format,
		Quality:       quality,
		Width:         width,
		Height:        height,
		Scale:         scale,
		Interpolation: resize.InterpolationFunction(interpolation),
	}
}
