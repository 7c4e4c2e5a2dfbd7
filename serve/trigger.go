package serve

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"pano/store"
	"pano/video"
)

// TriggerServer queues a video already on disk for stitching. Only videos
// under Dir are accepted.
type TriggerServer struct {
	Dir     string
	Enqueue func(path string) <-chan *store.Record
}

// within resolves p and reports whether it lies under s.Dir.
func (s *TriggerServer) within(p string) (string, bool) {
	if s.Dir == "" {
		return "", false
	}
	dir, err := filepath.Abs(s.Dir)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(dir, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return abs, true
}

func (s *TriggerServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p := r.Form.Get("path")
	if !video.IsVideo(p) {
		http.Error(w, fmt.Sprintf("Not a video file: %q", p), http.StatusBadRequest)
		return
	}
	p, ok := s.within(p)
	if !ok {
		http.Error(w, "Path is outside the watched directory", http.StatusForbidden)
		return
	}
	if fi, err := os.Stat(p); err != nil || fi.IsDir() {
		http.Error(w, fmt.Sprintf("No video at %v", p), http.StatusNotFound)
		return
	}

	if s.Enqueue(p) == nil {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
		return
	}
	log.WithField("addr", r.RemoteAddr).Infof("Queued %v", p)

	w.Header().Add("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintln(w, "ok")
}
