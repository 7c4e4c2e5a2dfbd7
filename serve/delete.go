package serve

import (
	"errors"
	"fmt"
	"net/http"

	"pano/store"
)

type DeleteServer struct {
	Store *store.Store

	// OnDelete is called after a record is removed. May be nil.
	OnDelete func()
}

func (s *DeleteServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id := r.Form.Get("id")
	if err := s.Store.Delete(id); errors.Is(err, store.ErrNotFound) {
		http.Error(w, fmt.Sprintf("No record found for id %v", id), http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if s.OnDelete != nil {
		s.OnDelete()
	}
	w.WriteHeader(http.StatusNoContent)
}
