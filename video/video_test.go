package video

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"frame-sampler/decoder/decodertest"
	"frame-sampler/metrics"
	"frame-sampler/storage"
)

type recordingSink struct {
	prepared []string
	written  []string
	failAt   int
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Prepare(_ context.Context, dir string) error {
	s.prepared = append(s.prepared, dir)
	return nil
}

func (s *recordingSink) WriteImage(_ context.Context, name string, _ image.Image) error {
	if s.failAt > 0 && len(s.written)+1 == s.failAt {
		return errors.New("disk full")
	}
	s.written = append(s.written, name)
	return nil
}

func TestNewCollection_NoPaths(t *testing.T) {
	if _, err := NewCollection(decodertest.NewBackend(), nil, nil); !errors.Is(err, ErrNoPaths) {
		t.Errorf("Expected ErrNoPaths, got %v", err)
	}
}

func TestCollection_ExtractFrames(t *testing.T) {
	backend := decodertest.NewBackend()
	first := addVideo(t, backend, "a.mp4", decodertest.Video{FrameRate: 30, FrameCount: 300})
	missing := filepath.Join(t.TempDir(), "missing.mp4")
	second := addVideo(t, backend, "b.mp4", decodertest.Video{FrameRate: 10, FrameCount: 25})

	collection, err := NewCollection(backend, zap.NewNop(), nil, first, missing, second)
	if err != nil {
		t.Fatalf("NewCollection failed: %v", err)
	}

	results, err := collection.ExtractFrames(context.Background(), time.Second)
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected joined error to contain ErrFileNotFound, got %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("Expected a result per path, got %d", len(results))
	}

	if results[0].Path != first || len(results[0].Frames) != 10 || results[0].Err != nil {
		t.Errorf("Unexpected first result: path=%s frames=%d err=%v", results[0].Path, len(results[0].Frames), results[0].Err)
	}
	if results[1].Path != missing || !errors.Is(results[1].Err, ErrFileNotFound) {
		t.Errorf("Unexpected second result: path=%s err=%v", results[1].Path, results[1].Err)
	}
	if got := indices(results[2].Frames); !equalIndices(got, []int64{0, 10, 20}) {
		t.Errorf("Expected [0 10 20] for third path, got %v", got)
	}

	if backend.OpenCaptures() != 0 {
		t.Errorf("Expected every capture to be released, %d open", backend.OpenCaptures())
	}
}

func TestCollection_ExtractFrames_Canceled(t *testing.T) {
	backend := decodertest.NewBackend()
	path := addVideo(t, backend, "a.mp4", decodertest.Video{FrameRate: 30, FrameCount: 30})

	collection, err := NewCollection(backend, nil, nil, path)
	if err != nil {
		t.Fatalf("NewCollection failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := collection.ExtractFrames(ctx, 0)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}

func TestCollection_SaveFrames_Disk(t *testing.T) {
	backend := decodertest.NewBackend()
	first := addVideo(t, backend, "a.mp4", decodertest.Video{FrameRate: 10, FrameCount: 30})
	second := addVideo(t, backend, "b.mp4", decodertest.Video{FrameRate: 10, FrameCount: 15})

	outputDir := filepath.Join(t.TempDir(), "nested", "frames")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		t.Fatalf("Failed to create output dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, "keep.txt"), []byte("keep"), 0644); err != nil {
		t.Fatalf("Failed to write existing file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, "0.png"), []byte("stale"), 0644); err != nil {
		t.Fatalf("Failed to write stale frame: %v", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.InitializeMetrics(registry, nil)

	collection, err := NewCollection(backend, zap.NewNop(), m, first, second)
	if err != nil {
		t.Fatalf("NewCollection failed: %v", err)
	}

	results, err := collection.SaveFrames(context.Background(), storage.NewDiskSink("", 0), outputDir, time.Second, "png")
	if err != nil {
		t.Fatalf("SaveFrames failed: %v", err)
	}

	if results[0].Saved != 3 || results[1].Saved != 2 {
		t.Errorf("Expected 3 and 2 saved frames, got %d and %d", results[0].Saved, results[1].Saved)
	}

	if _, err := os.Stat(filepath.Join(outputDir, "keep.txt")); err != nil {
		t.Errorf("Expected existing file to survive: %v", err)
	}

	// The second video restarts at index 0 and overwrites the first video's files.
	for _, name := range []string{"0.png", "1.png", "2.png"} {
		file, err := os.Open(filepath.Join(outputDir, name))
		if err != nil {
			t.Fatalf("Expected %s to exist: %v", name, err)
		}
		img, err := png.Decode(file)
		file.Close()
		if err != nil {
			t.Fatalf("Expected %s to be a png: %v", name, err)
		}
		if name == "0.png" && decodertest.IndexOf(img) != 0 {
			t.Errorf("Expected 0.png to hold frame 0, got %d", decodertest.IndexOf(img))
		}
		if name == "1.png" && decodertest.IndexOf(img) != 11 {
			t.Errorf("Expected 1.png to hold frame 11, got %d", decodertest.IndexOf(img))
		}
	}

	if got := testutil.ToFloat64(m.FramesWritten.WithLabelValues("disk")); got != 5 {
		t.Errorf("Expected 5 frames written, got %v", got)
	}
	if got := testutil.ToFloat64(m.VideosProcessed.WithLabelValues("save", "ok")); got != 2 {
		t.Errorf("Expected 2 videos processed, got %v", got)
	}
}

func TestCollection_SaveFrames_CreatesOutputDir(t *testing.T) {
	backend := decodertest.NewBackend()
	path := addVideo(t, backend, "a.mp4", decodertest.Video{FrameRate: 10, FrameCount: 3})
	outputDir := filepath.Join(t.TempDir(), "does", "not", "exist")

	collection, err := NewCollection(backend, nil, nil, path)
	if err != nil {
		t.Fatalf("NewCollection failed: %v", err)
	}

	if _, err := collection.SaveFrames(context.Background(), storage.NewDiskSink("", 0), outputDir, 0, ""); err != nil {
		t.Fatalf("SaveFrames failed: %v", err)
	}

	for _, name := range []string{"0.png", "1.png", "2.png"} {
		if _, err := os.Stat(filepath.Join(outputDir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
}

func TestCollection_SaveFrames_WriteErrorSkipsToNextPath(t *testing.T) {
	backend := decodertest.NewBackend()
	first := addVideo(t, backend, "a.mp4", decodertest.Video{FrameRate: 10, FrameCount: 5})
	second := addVideo(t, backend, "b.mp4", decodertest.Video{FrameRate: 10, FrameCount: 2})

	sink := &recordingSink{failAt: 3}

	collection, err := NewCollection(backend, nil, nil, first, second)
	if err != nil {
		t.Fatalf("NewCollection failed: %v", err)
	}

	results, err := collection.SaveFrames(context.Background(), sink, "out", 0, "jpg")
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("Expected ErrWrite, got %v", err)
	}

	if !errors.Is(results[0].Err, ErrWrite) || results[0].Saved != 2 {
		t.Errorf("Unexpected first result: saved=%d err=%v", results[0].Saved, results[0].Err)
	}
	if results[1].Err != nil || results[1].Saved != 2 {
		t.Errorf("Unexpected second result: saved=%d err=%v", results[1].Saved, results[1].Err)
	}

	want := []string{"out/0.jpg", "out/1.jpg", "out/0.jpg", "out/1.jpg"}
	if len(sink.written) != len(want) {
		t.Fatalf("Expected %v, got %v", want, sink.written)
	}
	for i := range want {
		if sink.written[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, sink.written[i])
		}
	}

	if backend.OpenCaptures() != 0 {
		t.Errorf("Expected every capture to be released, %d open", backend.OpenCaptures())
	}
}

func TestCollection_SaveFrames_Canceled(t *testing.T) {
	backend := decodertest.NewBackend()
	first := addVideo(t, backend, "a.mp4", decodertest.Video{FrameRate: 10, FrameCount: 5})
	second := addVideo(t, backend, "b.mp4", decodertest.Video{FrameRate: 10, FrameCount: 5})

	collection, err := NewCollection(backend, nil, nil, first, second)
	if err != nil {
		t.Fatalf("NewCollection failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	results, err := collection.SaveFrames(ctx, sink, "out", 0, "png")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if len(results) != 0 || len(sink.written) != 0 {
		t.Errorf("Expected nothing processed, got %d results and %d writes", len(results), len(sink.written))
	}

	for _, call := range backend.Calls() {
		if call.Op == "open" {
			t.Errorf("Expected no video to be opened, got %+v", call)
		}
	}
}

func TestCollection_SaveFrames_ReadErrorIsNotAFailure(t *testing.T) {
	backend := decodertest.NewBackend()
	path := addVideo(t, backend, "flaky.mp4", decodertest.Video{FrameRate: 10, FrameCount: 10, ReadErr: errors.New("corrupt"), ReadErrAt: 3})

	collection, err := NewCollection(backend, nil, nil, path)
	if err != nil {
		t.Fatalf("NewCollection failed: %v", err)
	}

	sink := &recordingSink{}
	results, err := collection.SaveFrames(context.Background(), sink, "out", 0, "png")
	if err != nil {
		t.Fatalf("Expected partially decodable video to succeed, got %v", err)
	}
	if results[0].Err != nil || results[0].Saved != 3 {
		t.Errorf("Expected 3 saved frames and no error, got saved=%d err=%v", results[0].Saved, results[0].Err)
	}
}
