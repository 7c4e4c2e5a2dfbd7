package watch

import (
	"context"
	"errors"
	"path"
	"time"

	log "github.com/sirupsen/logrus"

	"pano/metrics"
	"pano/pano"
	"pano/stitch"
	"pano/store"
	"pano/video"
	"pano/video/sink"
)

// QueueSize bounds the number of videos waiting to be stitched.
const QueueSize = 100

// Runner runs one panorama pass; *pano.Runner implements it.
type Runner interface {
	Run(opts pano.Options) (*pano.Result, error)
}

// Uploader copies a finished panorama elsewhere; *storage.Uploader
// implements it.
type Uploader interface {
	Upload(ctx context.Context, key, path string) (string, error)
}

// RunListener is told about every record that reaches a final state.
type RunListener interface {
	RunFinished(r *store.Record)
}

type Daemon struct {
	// NewRunner builds the runner for one video in the given stitch mode.
	NewRunner func(mode stitch.Mode) Runner

	Library  *video.Library
	Store    *store.Store
	Uploader Uploader
	Listener RunListener

	// Options returns the options for the next run, so configuration reloads
	// apply to videos queued later. Input and Output are filled in per video.
	Options func() pano.Options

	// Mode returns the stitch mode for the next run. Defaults to
	// stitch.ModePanorama.
	Mode func() stitch.Mode

	// Thumb writes a thumbnail of the panorama at src to dst. Defaults to
	// sink.ThumbFile.
	Thumb func(src, dst string) error

	c     chan *workItem
	close chan chan bool
}

type workItem struct {
	path  string
	donec chan *store.Record
}

// Start launches the worker. Videos are stitched one at a time, in the
// order they were queued.
func (d *Daemon) Start() {
	d.c = make(chan *workItem, QueueSize)
	d.close = make(chan chan bool, 1)
	go func() {
		for {
			var w *workItem
			select {
			case cc := <-d.close:
				cc <- true
				return
			case w = <-d.c:
			}
			metrics.QueueDepth.Set(float64(len(d.c)))
			r := d.process(w.path)
			w.donec <- r
		}
	}()
}

// Enqueue schedules the video at path. The returned channel receives the
// final record; it is nil if the queue is full and the video was dropped.
func (d *Daemon) Enqueue(path string) <-chan *store.Record {
	w := &workItem{
		path:  path,
		donec: make(chan *store.Record, 1),
	}
	select {
	case d.c <- w:
		metrics.QueueDepth.Set(float64(len(d.c)))
	default:
		log.Warnf("Panorama for %v dropped due to backlog", path)
		return nil
	}
	return w.donec
}

// Close stops the worker after the current video finishes.
func (d *Daemon) Close() {
	c := make(chan bool)
	d.close <- c
	<-c
}

func (d *Daemon) options() pano.Options {
	if d.Options != nil {
		return d.Options()
	}
	return pano.Options{}
}

func (d *Daemon) mode() stitch.Mode {
	if d.Mode != nil {
		return d.Mode()
	}
	return stitch.ModePanorama
}

func (d *Daemon) process(input string) *store.Record {
	e := d.Library.NewEntry(time.Now(), input)
	opts := d.options()
	opts.Input = input
	opts.Output = e.PanoPath
	mode := d.mode()

	r := store.NewRecord(input, opts.Interval)
	clog := log.WithField("id", r.ID).WithField("input", input)
	if d.Store != nil {
		if err := d.Store.Create(r); err != nil {
			clog.Errorf("Failed to create record: %v", err)
		}
	}

	clog.Infof("Generating panorama at interval %d in %v mode", opts.Interval, mode)
	res, err := d.NewRunner(mode).Run(opts)
	d.finish(r, res, err)

	if err == nil {
		r.PanoPath = e.PanoPath
		if err := d.thumb(e.PanoPath, e.ThumbPath); err != nil {
			clog.Errorf("Failed to generate thumbnail: %v", err)
		} else {
			r.ThumbPath = e.ThumbPath
			r.HaveThumb = true
		}
		if d.Uploader != nil {
			key := path.Join(e.Time.Format("2006/01/02"), r.ID+d.Library.Ext)
			if k, err := d.Uploader.Upload(context.Background(), key, e.PanoPath); err != nil {
				clog.Errorf("Failed to upload panorama: %v", err)
			} else {
				r.UploadKey = k
			}
		}
		clog.Infof("Panorama complete (%dx%d)", r.Width, r.Height)
	} else {
		clog.Errorf("Panorama failed: %v", err)
	}

	if d.Store != nil {
		if err := d.Store.Update(r); err != nil {
			clog.Errorf("Failed to update record: %v", err)
		}
	}
	if d.Listener != nil {
		d.Listener.RunFinished(r)
	}
	return r
}

func (d *Daemon) thumb(src, dst string) error {
	if d.Thumb != nil {
		return d.Thumb(src, dst)
	}
	return sink.ThumbFile(src, dst)
}

// finish copies a run's result into r.
func (d *Daemon) finish(r *store.Record, res *pano.Result, err error) {
	if res != nil {
		r.FramesRead = res.FramesRead
		r.FramesSampled = res.FramesSampled
		r.Width = res.Size.X
		r.Height = res.Size.Y
		r.ElapsedMs = res.Elapsed.Milliseconds()
	}
	r.Outcome = pano.Outcome(err)
	if err != nil {
		r.Status = store.StatusFailed
		r.Error = err.Error()
	} else {
		r.Status = store.StatusDone
	}

	var serr *stitch.Error
	switch {
	case errors.As(err, &serr):
		code := int(serr.Status)
		r.StitchStatus = &code
	case err == nil || errors.Is(err, pano.ErrPersistenceFailed):
		code := int(stitch.StatusOK)
		r.StitchStatus = &code
	}
}
