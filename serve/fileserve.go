package serve

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"pano/store"
)

// FileServer serves one of the files belonging to a record.
type FileServer struct {
	Store    *store.Store
	PathFunc func(r *store.Record) string
}

func NewPanoServer(s *store.Store) *FileServer {
	return &FileServer{
		Store: s,
		PathFunc: func(r *store.Record) string {
			return r.PanoPath
		},
	}
}

func NewThumbServer(s *store.Store) *FileServer {
	return &FileServer{
		Store: s,
		PathFunc: func(r *store.Record) string {
			if !r.HaveThumb {
				return ""
			}
			return r.ThumbPath
		},
	}
}

func (s *FileServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := r.Form.Get("id")
	rec, err := s.Store.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, fmt.Sprintf("No record found for id %v", id), http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	p := s.PathFunc(rec)
	if p == "" {
		http.Error(w, fmt.Sprintf("No file for id %v", id), http.StatusNotFound)
		return
	}
	f, err := os.Open(p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, filepath.Base(p), fi.ModTime(), f)
}
