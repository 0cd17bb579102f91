package video

import "errors"

var (
	ErrFileNotFound     = errors.New("file not found")
	ErrInvalidFrameRate = errors.New("invalid frame rate")
	ErrWrite            = errors.New("failed to write frame")
	ErrClosed           = errors.New("reader is not open")
	ErrNoPaths          = errors.New("no video paths given")
)
