package serve

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"pano/notify"
	"pano/store"
)

// Server bundles the HTTP handlers of the daemon.
type Server struct {
	Store   *store.Store
	Updater *MetaUpdater
	Trigger *TriggerServer

	// Push is optional.
	Push *notify.WebPush
}

// Handler returns the routes wrapped in an access log.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/panoramas", &MetaServer{Store: s.Store})
	mux.Handle("/panorama", NewPanoServer(s.Store))
	mux.Handle("/thumb", NewThumbServer(s.Store))
	mux.Handle("/delete", &DeleteServer{Store: s.Store, OnDelete: s.Updater.Refresh})
	mux.Handle("/eventsws", s.Updater)
	if s.Trigger != nil {
		mux.Handle("/stitch", s.Trigger)
	}
	if s.Push != nil {
		(&PushServer{Push: s.Push}).RegisterHandlers(mux)
	}
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return handlers.CombinedLoggingHandler(log.StandardLogger().WriterLevel(log.DebugLevel), mux)
}
