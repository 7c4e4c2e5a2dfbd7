package notify

import (
	"path/filepath"
	"sync"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"

	"pano/store"
)

// Notification is sent to all Listeners registered with Notifier when a
// panorama run finishes.
type Notification struct {
	TimeString string
	Identifier string
	Input      string
	Outcome    string
	Width      int
	Height     int
}

// NewNotification summarizes a finished record.
func NewNotification(r *store.Record) *Notification {
	return &Notification{
		TimeString: r.UpdatedAt.Format("3:04 PM"),
		Identifier: r.ID,
		Input:      filepath.Base(r.Input),
		Outcome:    r.Outcome,
		Width:      r.Width,
		Height:     r.Height,
	}
}

type NotifyListener interface {
	Notify(n *Notification) error
}

// Notifier fans finished runs out to its listeners.
type Notifier struct {
	Listeners []NotifyListener

	l sync.Mutex
}

// Add registers another listener.
func (n *Notifier) Add(l NotifyListener) {
	n.l.Lock()
	defer n.l.Unlock()
	n.Listeners = append(n.Listeners, l)
}

// RunFinished is invoked when a record reaches a final state. Listeners are
// called concurrently; RunFinished waits for all of them.
func (n *Notifier) RunFinished(r *store.Record) {
	n.l.Lock()
	listeners := append([]NotifyListener(nil), n.Listeners...)
	n.l.Unlock()

	notification := NewNotification(r)
	log.Debugf("Sending notification: %v", spew.Sdump(notification))
	var wg sync.WaitGroup
	for _, l := range listeners {
		wg.Add(1)
		go func(l NotifyListener) {
			defer wg.Done()
			if err := l.Notify(notification); err != nil {
				log.Errorf("Failed to send notification: %v", err)
			}
		}(l)
	}
	wg.Wait()
}
