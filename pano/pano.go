// Package pano turns a video into a single panoramic image: it samples every
// Nth frame, hands the samples to a Stitcher and writes the result.
package pano

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"pano/metrics"
	"pano/stitch"
	"pano/video"
	"pano/video/sink"
	"pano/video/source"
)

// Defaults used when an Options field is left zero.
const (
	DefaultInput     = "video.mp4"
	DefaultOutput    = "panorama.jpg"
	DefaultInterval  = 10
	DefaultMinFrames = 2
)

var (
	// ErrSourceUnavailable aliases source.ErrSourceUnavailable.
	ErrSourceUnavailable = source.ErrSourceUnavailable
	// ErrStitchFailed aliases stitch.ErrStitchFailed.
	ErrStitchFailed = stitch.ErrStitchFailed

	ErrInsufficientFrames = errors.New("not enough frames to create a panorama")
	ErrPersistenceFailed  = errors.New("failed to save panorama")
)

// Options configures a single run.
type Options struct {
	// Input is the path of the video to read. Default "video.mp4".
	Input string
	// Output is where the panorama is written; the extension picks the image
	// format. Default "panorama.jpg".
	Output string
	// Interval is the number of source frames between two samples. Default 10.
	Interval int
	// MinFrames is the fewest samples worth stitching. Values below 2 are
	// raised to 2.
	MinFrames int
}

func (o Options) withDefaults() Options {
	if o.Input == "" {
		o.Input = DefaultInput
	}
	if o.Output == "" {
		o.Output = DefaultOutput
	}
	if o.Interval == 0 {
		o.Interval = DefaultInterval
	}
	if o.MinFrames < DefaultMinFrames {
		o.MinFrames = DefaultMinFrames
	}
	return o
}

// Result describes a finished run. On failure the counts that were reached
// before the failure are still filled in.
type Result struct {
	Output        string
	FramesRead    int
	FramesSampled int
	Size          image.Point
	Elapsed       time.Duration
}

// Runner wires a video source, a stitcher and an image writer together.
type Runner struct {
	// Open opens a video source. Defaults to source.OpenFile.
	Open     func(path string) (source.Source, error)
	Stitcher stitch.Stitcher
	Writer   sink.Writer
}

// NewRunner returns a Runner reading video files with OpenCV, stitching in
// the given mode and writing image files.
func NewRunner(mode stitch.Mode) *Runner {
	return &Runner{
		Stitcher: &stitch.OpenCV{Mode: mode},
		Writer:   &sink.ImageFile{},
	}
}

func (r *Runner) open(path string) (source.Source, error) {
	if r.Open != nil {
		return r.Open(path)
	}
	return source.OpenFile(path)
}

// Run executes one sample, stitch and save pass. It makes a single attempt;
// errors match one of ErrSourceUnavailable, ErrInsufficientFrames,
// ErrStitchFailed or ErrPersistenceFailed via errors.Is.
func (r *Runner) Run(opts Options) (*Result, error) {
	opts = opts.withDefaults()
	start := time.Now()
	res := &Result{}
	defer func() {
		res.Elapsed = time.Since(start)
	}()

	samples, err := r.sample(opts)
	if err != nil {
		metrics.RunsTotal.WithLabelValues(Outcome(err)).Inc()
		return res, err
	}
	defer samples.Close()
	res.FramesRead = samples.Read
	res.FramesSampled = samples.Len()
	metrics.FramesReadTotal.Add(float64(samples.Read))
	metrics.FramesSampledTotal.Add(float64(samples.Len()))
	log.Infof("Extracted %d frames.", samples.Len())

	if samples.Len() < opts.MinFrames {
		err := fmt.Errorf("%w: sampled %d of %d frames at interval %d, need at least %d; try reducing the interval",
			ErrInsufficientFrames, samples.Len(), samples.Read, opts.Interval, opts.MinFrames)
		metrics.RunsTotal.WithLabelValues(Outcome(err)).Inc()
		return res, err
	}

	pano, err := r.stitch(samples.Frames)
	if err != nil {
		metrics.RunsTotal.WithLabelValues(Outcome(err)).Inc()
		return res, err
	}
	defer pano.Close()
	res.Size = image.Point{X: pano.Cols(), Y: pano.Rows()}

	if err := r.Writer.Write(opts.Output, pano); err != nil {
		err = fmt.Errorf("%w: %s: %v", ErrPersistenceFailed, opts.Output, err)
		metrics.RunsTotal.WithLabelValues(Outcome(err)).Inc()
		return res, err
	}
	res.Output = opts.Output
	metrics.RunsTotal.WithLabelValues(Outcome(nil)).Inc()
	log.Infof("Panoramic image saved to %v", opts.Output)
	return res, nil
}

func (r *Runner) sample(opts Options) (*video.Samples, error) {
	defer observe("sample", time.Now())
	log.Info("Extracting frames from video...")

	if opts.Interval < 1 {
		return nil, fmt.Errorf("%w: got %d", video.ErrInvalidInterval, opts.Interval)
	}
	src, err := r.open(opts.Input)
	if err != nil {
		if !errors.Is(err, ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warnf("Failed to release video source %v: %v", opts.Input, err)
		}
	}()
	return video.Sample(src, opts.Interval)
}

func (r *Runner) stitch(frames []source.Frame) (gocv.Mat, error) {
	defer observe("stitch", time.Now())
	log.Info("Stitching frames into a panoramic image...")

	pano, err := r.Stitcher.Stitch(frames)
	var serr *stitch.Error
	switch {
	case errors.As(err, &serr):
		metrics.StitchStatusTotal.WithLabelValues(strconv.Itoa(int(serr.Status))).Inc()
		return gocv.Mat{}, err
	case err != nil:
		return gocv.Mat{}, fmt.Errorf("%w: %v", ErrStitchFailed, err)
	}
	metrics.StitchStatusTotal.WithLabelValues(strconv.Itoa(int(stitch.StatusOK))).Inc()
	return pano, nil
}

func observe(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Outcome names the failure category of err, or "ok" for nil.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, ErrInsufficientFrames):
		return "insufficient_frames"
	case errors.Is(err, ErrStitchFailed):
		return "stitch_failed"
	case errors.Is(err, ErrPersistenceFailed):
		return "persistence_failed"
	}
	return "error"
}

// ExitCode maps err to a process exit code: 0 on success, 2 through 5 for
// the failure categories and 1 for anything else.
func ExitCode(err error) int {
	switch Outcome(err) {
	case "ok":
		return 0
	case "source_unavailable":
		return 2
	case "insufficient_frames":
		return 3
	case "stitch_failed":
		return 4
	case "persistence_failed":
		return 5
	}
	return 1
}
