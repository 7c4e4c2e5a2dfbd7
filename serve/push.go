package serve

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"

	"pano/notify"
)

// PushServer exposes web push subscription management.
type PushServer struct {
	Push *notify.WebPush
}

func (p *PushServer) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/push_get_pubkey", p.handleGetPubkey)
	mux.HandleFunc("/push_get_subscriptions", p.handleGetSubscriptions)
	mux.HandleFunc("/push_subscribe", p.handleSubscribe)
	mux.HandleFunc("/push_unsubscribe", p.handleUnsubscribe)

	// Manually test web push notifications by sending a fake run.
	mux.HandleFunc("/push_test", p.handleTest)
}

func (p *PushServer) handleGetPubkey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, p.Push.Key.Public)
}

func extractSub(w http.ResponseWriter, r *http.Request) *webpush.Subscription {
	if r.Method != "POST" {
		http.Error(w, "Invalid request method", http.StatusMethodNotAllowed)
		return nil
	}
	sub := &webpush.Subscription{}
	if err := json.NewDecoder(r.Body).Decode(sub); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}
	return sub
}

func (p *PushServer) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	sub := extractSub(w, r)
	if sub == nil {
		return
	}
	if err := p.Push.Subscribe(r.RemoteAddr, sub); err != nil {
		log.Errorf("Failed to create push subscription: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (p *PushServer) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	sub := extractSub(w, r)
	if sub == nil {
		return
	}
	err := p.Push.Unsubscribe(sub.Endpoint)
	switch {
	case errors.Is(err, notify.ErrUnknownSubscription):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		log.Errorf("Failed to delete subscription: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (p *PushServer) handleGetSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := p.Push.Subscriptions()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(subs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (p *PushServer) handleTest(w http.ResponseWriter, r *http.Request) {
	n := &notify.Notification{
		TimeString: "8:47 PM",
		Identifier: "00000000-0000-0000-0000-000000000000",
		Input:      "test.mp4",
		Outcome:    "ok",
		Width:      4000,
		Height:     720,
	}
	if err := p.Push.Notify(n); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
