package sink

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Video writes frames to a video file using OpenCV's VideoWriter. It exists
// for authoring sample input clips, mostly from tests; the pipeline itself
// only ever writes still images. The MJPG codec in an .avi container is
// available in every OpenCV build.
type Video struct {
	writer *gocv.VideoWriter
	frames int
}

func NewVideo(path, codec string, fps float64, width, height int) (*Video, error) {
	if codec == "" {
		codec = "MJPG"
	}
	w, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, err
	}
	if !w.IsOpened() {
		w.Close()
		return nil, fmt.Errorf("unable to open video writer for %v", path)
	}
	return &Video{
		writer: w,
	}, nil
}

func (v *Video) Close() error {
	return v.writer.Close()
}

func (v *Video) Put(img gocv.Mat) error {
	if err := v.writer.Write(img); err != nil {
		return err
	}
	v.frames++
	return nil
}

// Frames returns the number of frames written so far.
func (v *Video) Frames() int {
	return v.frames
}
