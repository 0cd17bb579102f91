package video

import (
	"os"
	"path/filepath"
	"testing"

	"frame-sampler/decoder/decodertest"
)

// addVideo creates a placeholder file and registers it with backend.
func addVideo(t *testing.T, backend *decodertest.Backend, name string, v decodertest.Video) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("not really a video"), 0644); err != nil {
		t.Fatalf("Failed to create %s: %v", path, err)
	}

	backend.Add(path, v)
	return path
}

func indices(frames []Frame) []int64 {
	out := make([]int64, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Index)
	}
	return out
}

func equalIndices(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
