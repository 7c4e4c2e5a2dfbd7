// Package stitch composes an ordered set of overlapping frames into a single
// panoramic image. The heavy lifting (feature matching, transform estimation,
// seam blending) is done by OpenCV.
package stitch

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"pano/video/source"
)

// ErrStitchFailed matches any *Error via errors.Is.
var ErrStitchFailed = errors.New("stitching failed")

// Status is the code reported by the OpenCV stitcher.
type Status int

// Values of OpenCV's cv::Stitcher::Status.
const (
	StatusOK                         Status = 0
	StatusNeedMoreImages             Status = 1
	StatusHomographyEstimationFailed Status = 2
	StatusCameraParamsAdjustFailed   Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNeedMoreImages:
		return "need more images"
	case StatusHomographyEstimationFailed:
		return "homography estimation failed"
	case StatusCameraParamsAdjustFailed:
		return "camera parameters adjustment failed"
	}
	return fmt.Sprintf("unknown status %d", int(s))
}

// Error reports a non-success status from the stitcher.
type Error struct {
	Status Status
}

func (e *Error) Error() string {
	return fmt.Sprintf("error during stitching: %v (status %d)", e.Status, int(e.Status))
}

func (e *Error) Is(target error) bool {
	return target == ErrStitchFailed
}

// Stitcher composes frames, in order, into a single image. On success the
// caller owns the returned Mat.
type Stitcher interface {
	Stitch(frames []source.Frame) (gocv.Mat, error)
}

// Mode selects the camera model used by the OpenCV stitcher.
type Mode int

const (
	// ModePanorama assumes a camera rotating around its center.
	ModePanorama Mode = iota
	// ModeScans assumes an affine model, for flat scenes like documents.
	ModeScans
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "panorama":
		return ModePanorama, nil
	case "scans":
		return ModeScans, nil
	}
	return 0, fmt.Errorf("unknown stitch mode %q", s)
}

func (m Mode) String() string {
	if m == ModeScans {
		return "scans"
	}
	return "panorama"
}

// OpenCV stitches with gocv's wrapper around cv::Stitcher.
type OpenCV struct {
	Mode Mode
}

func (o *OpenCV) Stitch(frames []source.Frame) (gocv.Mat, error) {
	if len(frames) < 2 {
		return gocv.Mat{}, &Error{Status: StatusNeedMoreImages}
	}

	start := time.Now()
	defer func() {
		log.Debugf("Stitcher ran in %v over %d frames", time.Since(start), len(frames))
	}()

	mats := make([]gocv.Mat, len(frames))
	for i, f := range frames {
		mats[i] = f.Mat
	}

	st := gocv.NewStitcher(gocv.StitcherMode(o.Mode))
	defer st.Close()

	pano := gocv.NewMat()
	if status := Status(st.Stitch(mats, &pano)); status != StatusOK {
		pano.Close()
		return gocv.Mat{}, &Error{Status: status}
	}
	return pano, nil
}
