package imagefmt

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path"
	"strings"

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

const DefaultQuality = 85

var formats = []string{"png", "jpg", "jpeg", "gif", "bmp", "tiff", "tif", "webp"}

// Normalize lower-cases format and strips a leading dot.
func Normalize(format string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
}

func IsSupported(format string) bool {
	format = Normalize(format)
	for _, f := range formats {
		if f == format {
			return true
		}
	}
	return false
}

// FromName returns the format implied by a file name's extension.
func FromName(name string) string {
	return Normalize(path.Ext(name))
}

// Encode writes img to w. Quality applies to jpeg and webp, zero means DefaultQuality.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	switch Normalize(format) {
	case "png":
		return png.Encode(w, img)

	case "jpg", "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})

	case "gif":
		return gif.Encode(w, img, nil)

	case "bmp":
		return bmp.Encode(w, img)

	case "tiff", "tif":
		return tiff.Encode(w, img, nil)

	case "webp":
		options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
		if err != nil {
			return fmt.Errorf("failed to create webp encoder options: %w", err)
		}
		return webp.Encode(w, img, options)

	default:
		return fmt.Errorf("unsupported image format: %s", format)
	}
}

// Resize scales img to width x height. A zero dimension keeps the aspect ratio.
func Resize(img image.Image, width int, height int, interpolation resize.InterpolationFunction) image.Image {
	if width <= 0 && height <= 0 {
		return img
	}

	return resize.Resize(uint(max(width, 0)), uint(max(height, 0)), img, interpolation)
}

// Rescale multiplies both dimensions of img by scale.
func Rescale(img image.Image, scale float64) image.Image {
	if scale <= 0 || scale == 1 {
		return img
	}

	dX := img.Bounds().Dx()
	dY := img.Bounds().Dy()

	return resize.Resize(uint(float64(dX)*scale), uint(float64(dY)*scale), img, resize.Lanczos3)
}
