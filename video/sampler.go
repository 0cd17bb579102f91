package video

import (
	"fmt"
	"math"
	"time"
)

// ComputeStep returns how many frame indices lie between two samples taken
// interval apart. A non-positive interval samples every frame.
func ComputeStep(frameRate float64, interval time.Duration) (int64, error) {
	if interval <= 0 {
		return 1, nil
	}

	if !validFrameRate(frameRate) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidFrameRate, frameRate)
	}

	frames := math.Floor(interval.Seconds() * frameRate)
	switch {
	case frames >= math.MaxInt64:
		return math.MaxInt64, nil
	case frames < 1:
		return 1, nil
	}

	return int64(frames), nil
}

func validFrameRate(frameRate float64) bool {
	return frameRate > 0 && !math.IsInf(frameRate, 0) && !math.IsNaN(frameRate)
}
