package source

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/pillash/mp4util"
	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// VideoCapture reads frames sequentially from a video file using OpenCV.
type VideoCapture struct {
	Path string

	cap   *gocv.VideoCapture
	mat   gocv.Mat
	index int
}

// OpenFile opens the video at path. Any failure to open, including an
// unsupported container or codec, is reported as ErrSourceUnavailable.
func OpenFile(path string) (*VideoCapture, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: %s: unable to open", ErrSourceUnavailable, path)
	}
	return &VideoCapture{
		Path: path,
		cap:  cap,
		mat:  gocv.NewMat(),
	}, nil
}

func (v *VideoCapture) Read() (Frame, bool) {
	if ok := v.cap.Read(&v.mat); !ok || v.mat.Empty() {
		return Frame{}, false
	}
	f := Frame{
		Mat:   v.mat,
		Index: v.index,
	}
	v.index++
	return f, true
}

func (v *VideoCapture) Close() error {
	if err := v.mat.Close(); err != nil {
		v.cap.Close()
		return err
	}
	return v.cap.Close()
}

// Info describes a video file before it is read.
type Info struct {
	Frames int
	FPS    float64
	Size   image.Point

	// DurationSec is only known for mp4 files.
	DurationSec int
}

// Probe reports the properties of the video at path without decoding it.
// Frame counts come from container metadata and may be approximate.
func Probe(path string) (*Info, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	defer cap.Close()
	if !cap.IsOpened() {
		return nil, fmt.Errorf("%w: %s: unable to open", ErrSourceUnavailable, path)
	}

	info := &Info{
		Frames: int(cap.Get(gocv.VideoCaptureFrameCount)),
		FPS:    cap.Get(gocv.VideoCaptureFPS),
		Size: image.Point{
			X: int(cap.Get(gocv.VideoCaptureFrameWidth)),
			Y: int(cap.Get(gocv.VideoCaptureFrameHeight)),
		},
	}

	if strings.EqualFold(filepath.Ext(path), ".mp4") {
		d, err := mp4util.Duration(path)
		if err != nil {
			log.Debugf("Unable to read mp4 duration of %v: %v", path, err)
		} else {
			info.DurationSec = d
		}
	}
	return info, nil
}
