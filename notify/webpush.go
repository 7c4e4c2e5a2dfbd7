package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrUnknownSubscription is returned when unsubscribing an endpoint that was
// never registered.
var ErrUnknownSubscription = errors.New("subscription not found")

type VAPIDKey struct {
	ID      uint `gorm:"primaryKey"`
	Public  string
	Private string
}

// Subscription is a browser registered for panorama notifications.
type Subscription struct {
	gorm.Model

	Peer string

	Endpoint string `gorm:"uniqueIndex;size:512"`
	JSON     string `json:"-"`

	LastSuccess        *time.Time
	LastFailure        *time.Time
	LastFailureMessage string
}

// WebPush delivers notifications to subscribed browsers.
type WebPush struct {
	// Key is the VAPID key for the web push. It is generated on first start
	// and persisted in the database.
	Key *VAPIDKey

	// Subscriber is the contact sent to push services.
	Subscriber string

	db *gorm.DB
}

func NewWebPush(db *gorm.DB, subscriber string) (*WebPush, error) {
	if err := db.AutoMigrate(&VAPIDKey{}, &Subscription{}); err != nil {
		return nil, err
	}
	p := &WebPush{
		Key:        &VAPIDKey{},
		Subscriber: subscriber,
		db:         db,
	}
	err := db.First(p.Key).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		priv, pub, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			return nil, err
		}
		p.Key.Private = priv
		p.Key.Public = pub
		if err := db.Create(p.Key).Error; err != nil {
			return nil, err
		}
		log.Infof("Web push VAPID keys generated")
	case err != nil:
		return nil, err
	default:
		log.Infof("Web push VAPID keys loaded from database")
	}
	return p, nil
}

// Subscribe stores sub for peer, replacing an earlier registration of the
// same endpoint.
func (p *WebPush) Subscribe(peer string, sub *webpush.Subscription) error {
	if sub.Endpoint == "" {
		return errors.New("subscription has no endpoint")
	}
	jb, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	s := &Subscription{}
	err = p.db.Where("endpoint = ?", sub.Endpoint).First(s).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	s.Peer = peer
	s.Endpoint = sub.Endpoint
	s.JSON = string(jb)
	if err := p.db.Save(s).Error; err != nil {
		return err
	}
	log.Infof("Added push subscription for peer %v", peer)
	return nil
}

func (p *WebPush) Unsubscribe(endpoint string) error {
	s := &Subscription{}
	if err := p.db.Where("endpoint = ?", endpoint).First(s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownSubscription
		}
		return err
	}
	if err := p.db.Unscoped().Delete(s).Error; err != nil {
		return err
	}
	log.Infof("Removed push subscription for peer %v (created at %v)", s.Peer, s.CreatedAt)
	return nil
}

func (p *WebPush) Subscriptions() ([]*Subscription, error) {
	var subs []*Subscription
	if err := p.db.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (p *WebPush) notifyOne(s *Subscription, payload []byte) error {
	var ws webpush.Subscription
	if err := json.Unmarshal([]byte(s.JSON), &ws); err != nil {
		return err
	}

	resp, err := webpush.SendNotification(payload, &ws, &webpush.Options{
		Subscriber:      p.Subscriber,
		VAPIDPublicKey:  p.Key.Public,
		VAPIDPrivateKey: p.Key.Private,
		TTL:             120,
		Urgency:         webpush.UrgencyNormal,
		Topic:           "pano_run_finished",
	})
	if resp != nil {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			log.Infof("Push service reports status %v, deleting subscription.", resp.Status)
			return p.db.Unscoped().Delete(s).Error
		}
	}

	now := time.Now()
	if err != nil {
		log.Warnf("Web push to client failed: %v", err)
		s.LastFailure = &now
		s.LastFailureMessage = err.Error()
	} else if resp != nil && resp.StatusCode >= 400 {
		s.LastFailure = &now
		s.LastFailureMessage = fmt.Sprintf("push service returned %v", resp.Status)
	} else {
		s.LastSuccess = &now
	}
	return p.db.Save(s).Error
}

// Notify implements NotifyListener.
func (p *WebPush) Notify(n *Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	subs, err := p.Subscriptions()
	if err != nil {
		return err
	}

	log.Infof("Sending web push notification to %d subscribers", len(subs))
	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s *Subscription) {
			defer wg.Done()
			if err := p.notifyOne(s, payload); err != nil {
				log.Errorf("Web push notify failed: %v", err)
			}
		}(s)
	}
	wg.Wait()
	return nil
}
