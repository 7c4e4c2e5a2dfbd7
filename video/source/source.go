package source

import (
	"errors"

	"gocv.io/x/gocv"
)

// ErrSourceUnavailable is returned when a video source cannot be opened or read.
var ErrSourceUnavailable = errors.New("video source unavailable")

// Frame is a single image read from a Source at a known sequential position.
type Frame struct {
	Mat gocv.Mat

	// Index is the zero-based position of the frame in the source.
	Index int

	closed bool
}

// Close releases the underlying Mat. Closing a frame twice panics.
func (f *Frame) Close() {
	if f.closed {
		panic("frame already closed")
	}
	f.closed = true
	f.Mat.Close()
}

// Clone returns a copy of the frame that owns its own Mat.
func (f *Frame) Clone() Frame {
	return Frame{
		Mat:   f.Mat.Clone(),
		Index: f.Index,
	}
}

// Source defines a finite sequence of video frames, such as a video file.
type Source interface {
	// Read returns the next frame. The second return value is false once the
	// source is exhausted. The returned Mat is owned by the source and is only
	// valid until the next call to Read; callers keeping a frame must Clone it.
	Read() (Frame, bool)

	// Close frees up all resources held by the source.
	Close() error
}
