package storage

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"frame-sampler/imagefmt"
)

// DiskSink writes frames below Root on the local filesystem.
type DiskSink struct {
	Root    string
	Quality int
}

func NewDiskSink(root string, quality int) *DiskSink {
	return &DiskSink{Root: root, Quality: quality}
}

func (d *DiskSink) Name() string { return "disk" }

func (d *DiskSink) resolve(name string) string {
	name = filepath.FromSlash(name)
	if d.Root == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Root, name)
}

// Prepare creates dir and its parents. Existing contents are left alone.
func (d *DiskSink) Prepare(_ context.Context, dir string) error {
	return os.MkdirAll(d.resolve(dir), 0755)
}

// WriteImage encodes img in the format of name's extension, replacing any existing file.
func (d *DiskSink) WriteImage(_ context.Context, name string, img image.Image) (err error) {
	fullPath := d.resolve(name)

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", fullPath, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", fullPath, closeErr)
		}
	}()

	if err := imagefmt.Encode(file, img, imagefmt.FromName(name), d.Quality); err != nil {
		return fmt.Errorf("failed to encode %s: %w", fullPath, err)
	}

	return nil
}
