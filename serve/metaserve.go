package serve

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strconv"

	"pano/store"
)

type MetaEntry struct {
	ID        string
	Timestamp int64
	Input     string

	Status  store.Status
	Outcome string
	Error   string `json:",omitempty"`

	StitchStatus *int `json:",omitempty"`

	HavePano  bool
	HaveThumb bool

	Interval      int
	FramesRead    int
	FramesSampled int
	Width         int
	Height        int
	ElapsedMs     int64
}

type MetaResponse struct {
	Items      []*MetaEntry
	ItemsCount int
}

func toMetaEntry(r *store.Record) *MetaEntry {
	return &MetaEntry{
		ID:            r.ID,
		Timestamp:     r.CreatedAt.Unix(),
		Input:         filepath.Base(r.Input),
		Status:        r.Status,
		Outcome:       r.Outcome,
		Error:         r.Error,
		StitchStatus:  r.StitchStatus,
		HavePano:      r.PanoPath != "",
		HaveThumb:     r.HaveThumb,
		Interval:      r.Interval,
		FramesRead:    r.FramesRead,
		FramesSampled: r.FramesSampled,
		Width:         r.Width,
		Height:        r.Height,
		ElapsedMs:     r.ElapsedMs,
	}
}

// MetaServer lists panorama records as JSON.
type MetaServer struct {
	Store *store.Store
}

func (s *MetaServer) BuildResponse(filter store.Filter) (*MetaResponse, error) {
	records, err := s.Store.List(filter)
	if err != nil {
		return nil, err
	}
	resp := &MetaResponse{Items: []*MetaEntry{}}
	for _, r := range records {
		resp.Items = append(resp.Items, toMetaEntry(r))
	}
	resp.ItemsCount = len(records)
	return resp, nil
}

func (s *MetaServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter := store.Filter{
		Status: store.Status(r.Form.Get("status")),
	}
	if l := r.Form.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}

	resp, err := s.BuildResponse(filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	js, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(js)
}
