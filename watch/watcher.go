package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"pano/video"
)

// DefaultSettle is how long a new file must go without writes before it is
// considered complete.
const DefaultSettle = 2 * time.Second

// Watcher queues videos that appear in a directory.
type Watcher struct {
	Dir    string
	Settle time.Duration

	// Enqueue is called once per completed video file.
	Enqueue func(path string)
}

// Run watches Dir until ctx is done. Files already present when Run starts
// are not queued.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return err
	}
	log.Infof("Watching %v for new videos", w.Dir)

	settle := w.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	tick := time.NewTicker(settle / 4)
	defer tick.Stop()

	// Last write seen for files still being copied in.
	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !video.IsVideo(ev.Name) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				pending[ev.Name] = time.Now()
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Errorf("Directory watch error: %v", err)

		case now := <-tick.C:
			for p, last := range pending {
				if now.Sub(last) < settle {
					continue
				}
				delete(pending, p)
				if fi, err := os.Stat(p); err != nil || fi.IsDir() || fi.Size() == 0 {
					continue
				}
				log.Infof("New video %v", filepath.Base(p))
				w.Enqueue(p)
			}
		}
	}
}
