package stitch

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"pano/video/source"
)

func TestErrorMatchesStitchFailed(t *testing.T) {
	var err error = &Error{Status: StatusHomographyEstimationFailed}
	assert.True(t, errors.Is(err, ErrStitchFailed))

	wrapped := fmt.Errorf("run: %w", err)
	assert.True(t, errors.Is(wrapped, ErrStitchFailed))

	var serr *Error
	require.True(t, errors.As(wrapped, &serr))
	assert.Equal(t, StatusHomographyEstimationFailed, serr.Status)
	assert.Contains(t, err.Error(), "status 2")
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "need more images", StatusNeedMoreImages.String())
	assert.Equal(t, "unknown status 42", Status(42).String())
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModePanorama, m)

	m, err = ParseMode("scans")
	require.NoError(t, err)
	assert.Equal(t, ModeScans, m)
	assert.Equal(t, "scans", m.String())

	_, err = ParseMode("cylindrical")
	assert.Error(t, err)
}

func TestOpenCVNeedsTwoFrames(t *testing.T) {
	m := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer m.Close()

	for _, frames := range [][]source.Frame{nil, {{Mat: m}}} {
		_, err := (&OpenCV{}).Stitch(frames)
		var serr *Error
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, StatusNeedMoreImages, serr.Status)
	}
}

// scene draws a large textured image with plenty of distinct corners.
func scene(rows, cols int) gocv.Mat {
	rng := rand.New(rand.NewSource(1))
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0), rows, cols, gocv.MatTypeCV8UC3)
	for i := 0; i < 600; i++ {
		c := color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255}
		x, y := rng.Intn(cols), rng.Intn(rows)
		w, h := 5+rng.Intn(40), 5+rng.Intn(40)
		if i%2 == 0 {
			gocv.Rectangle(&img, image.Rect(x, y, x+w, y+h), c, -1)
		} else {
			gocv.Circle(&img, image.Pt(x, y), w/2, c, -1)
		}
	}
	return img
}

func crop(img gocv.Mat, r image.Rectangle) gocv.Mat {
	region := img.Region(r)
	defer region.Close()
	return region.Clone()
}

func TestOpenCVStitchesOverlappingFrames(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV stitching in short mode")
	}
	img := scene(480, 960)
	defer img.Close()

	// Frames drift down as well as right, like a handheld pan.
	left := crop(img, image.Rect(0, 0, 600, 440))
	defer left.Close()
	right := crop(img, image.Rect(360, 40, 960, 480))
	defer right.Close()

	pano, err := (&OpenCV{Mode: ModeScans}).Stitch([]source.Frame{{Mat: left, Index: 0}, {Mat: right, Index: 1}})
	require.NoError(t, err)
	defer pano.Close()

	// The result covers both frames, so it is never smaller than either.
	for _, f := range []gocv.Mat{left, right} {
		assert.GreaterOrEqual(t, pano.Cols(), f.Cols())
		assert.GreaterOrEqual(t, pano.Rows(), f.Rows())
	}
	assert.Greater(t, pano.Cols(), left.Cols(), "the right frame extends the scene")
}

func TestOpenCVFailsWithoutOverlap(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping OpenCV stitching in short mode")
	}
	a := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer a.Close()
	b := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer b.Close()
	gocv.RandU(&a, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(255, 255, 255, 0))
	gocv.RandU(&b, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(255, 255, 255, 0))

	_, err := (&OpenCV{}).Stitch([]source.Frame{{Mat: a}, {Mat: b, Index: 1}})
	require.ErrorIs(t, err, ErrStitchFailed)
	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.NotEqual(t, StatusOK, serr.Status)
}
