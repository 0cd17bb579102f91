package validation

import (
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"frame-sampler/config"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"":      0,
		"1":     time.Second,
		"0.5":   500 * time.Millisecond,
		"250ms": 250 * time.Millisecond,
		"1m30s": 90 * time.Second,
	}

	for value, want := range cases {
		got, err := ParseDuration(value)
		if err != nil {
			t.Errorf("ParseDuration(%q) failed: %v", value, err)
			continue
		}
		if got != want {
			t.Errorf("ParseDuration(%q) = %v, want %v", value, got, want)
		}
	}

	for _, value := range []string{"-1", "-2s", "soon"} {
		if _, err := ParseDuration(value); err == nil {
			t.Errorf("Expected ParseDuration(%q) to fail", value)
		}
	}
}

func TestPathAllowed(t *testing.T) {
	patterns := []string{"/data/videos/*", "/srv/exact.mp4"}

	if !PathAllowed("/anything.mp4", nil) {
		t.Error("Expected no patterns to allow everything")
	}
	if !PathAllowed("/data/videos/2025/clip.mp4", patterns) {
		t.Error("Expected wildcard match")
	}
	if !PathAllowed("/srv/exact.mp4", patterns) {
		t.Error("Expected exact match")
	}
	if PathAllowed("/etc/passwd", patterns) {
		t.Error("Expected /etc/passwd to be rejected")
	}
}

func TestValidateVideoPath(t *testing.T) {
	logger := zap.NewNop()
	cfg := &config.Config{AllowedPaths: []string{"/data/*"}}

	path, status, err := ValidateVideoPath(logger, "/data/a/../b/clip.mp4", cfg)
	if err != nil || status != http.StatusOK || path != "/data/b/clip.mp4" {
		t.Errorf("Expected cleaned allowed path, got %q status=%d err=%v", path, status, err)
	}

	_, status, err = ValidateVideoPath(logger, "/data/../etc/passwd", cfg)
	if err == nil || status != http.StatusForbidden {
		t.Errorf("Expected forbidden after cleaning, got status=%d err=%v", status, err)
	}

	_, status, err = ValidateVideoPath(logger, "/data/notes.txt", cfg)
	if err == nil || status != http.StatusUnsupportedMediaType {
		t.Errorf("Expected unsupported media type, got status=%d err=%v", status, err)
	}

	_, status, err = ValidateVideoPath(logger, " ", cfg)
	if err == nil || status != http.StatusBadRequest {
		t.Errorf("Expected bad request for empty path, got status=%d err=%v", status, err)
	}
}

func TestValidateOutputDir(t *testing.T) {
	if dir, err := ValidateOutputDir(""); err != nil || dir != "." {
		t.Errorf("Expected '.', got %q err=%v", dir, err)
	}
	if dir, err := ValidateOutputDir("jobs/42/./frames"); err != nil || dir != "jobs/42/frames" {
		t.Errorf("Expected 'jobs/42/frames', got %q err=%v", dir, err)
	}
	for _, dir := range []string{"/tmp/out", "../out", "a/../../out"} {
		if _, err := ValidateOutputDir(dir); err == nil {
			t.Errorf("Expected %q to be rejected", dir)
		}
	}
}

func TestProcessFramesRequest(t *testing.T) {
	logger := zap.NewNop()
	cfg := &config.Config{DefaultFormat: "png"}

	ok, status, err, params := ProcessFramesRequest(logger, &FramesRequest{
		Paths:     []string{"/data/a.mp4", "/data/b.mp4"},
		Interval:  "0.5",
		OutputDir: "job-1",
	}, cfg)
	if !ok || status != http.StatusOK || err != nil {
		t.Fatalf("Expected OK, got ok=%v status=%d err=%v", ok, status, err)
	}
	if params.Interval != 500*time.Millisecond || params.Format != "png" || params.Sink != "disk" || len(params.Paths) != 2 {
		t.Errorf("Unexpected params: %+v", params)
	}

	invalid := []FramesRequest{
		{},
		{Paths: []string{"/data/a.mp4"}, Interval: "often"},
		{Paths: []string{"/data/a.mp4"}, Format: "exr"},
		{Paths: []string{"/data/a.mp4"}, OutputDir: "../escape"},
		{Paths: []string{"/data/a.mp4"}, Sink: "ftp"},
	}
	for _, req := range invalid {
		if ok, status, _, _ := ProcessFramesRequest(logger, &req, cfg); ok || status != http.StatusBadRequest {
			t.Errorf("Expected bad request for %+v, got ok=%v status=%d", req, ok, status)
		}
	}
}

func TestProcessPreviewContext(t *testing.T) {
	logger := zap.NewNop()
	cfg := &config.Config{DefaultQuality: 85}

	var got *PreviewContext
	app := fiber.New()
	app.Get("/frame", func(c *fiber.Ctx) error {
		ok, status, err, params := ProcessPreviewContext(logger, c, cfg)
		if !ok {
			return c.Status(status).SendString(err.Error())
		}
		got = params
		return c.SendStatus(status)
	})

	req, _ := http.NewRequest(http.MethodGet, "/frame?path=/data/clip.mp4&t=2.5&w=320&format=webp&i=1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if got.Path != "/data/clip.mp4" || got.StartTime != 2500*time.Millisecond || got.Width != 320 || got.Format != "webp" {
		t.Errorf("Unexpected params: %s", got)
	}
	if got.Quality != 85 || got.Interpolation != resize.Bilinear {
		t.Errorf("Unexpected quality/interpolation: %s", got)
	}

	for _, query := range []string{"", "?path=/a.mp4&q=0", "?path=/a.mp4&format=exr", "?path=/a.mp4&t=-1", "?path=/a.mp4&s=2"} {
		req, _ := http.NewRequest(http.MethodGet, "/frame"+query, nil)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400 for %q, got %d", query, resp.StatusCode)
		}
	}
}
