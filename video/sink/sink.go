package sink

import (
	"gocv.io/x/gocv"
)

// Writer defines a destination for a finished image, such as a file on disk.
type Writer interface {
	// Write persists img at path. The caller keeps ownership of img.
	Write(path string, img gocv.Mat) error
}
