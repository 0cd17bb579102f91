package mime

import (
	"path/filepath"
	"strings"
)

var imageMimeTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"tif":  "image/tiff",
	"webp": "image/webp",
}

var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".ogv":  "video/ogg",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".flv":  "video/x-flv",
}

// ImageContentType returns the content type for an image format, or
// application/octet-stream when unknown.
func ImageContentType(format string) string {
	if ct, ok := imageMimeTypes[strings.ToLower(format)]; ok {
		return ct
	}
	return "application/octet-stream"
}

// VideoContentType returns the content type implied by a file extension.
func VideoContentType(path string) (string, bool) {
	ct, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ct, ok
}

func IsVideoFile(path string) bool {
	_, ok := VideoContentType(path)
	return ok
}
