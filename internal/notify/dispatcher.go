package notify

import (
	"context"
	"sync"
	"time"

	"github.com/Dan9191/infotelecom-auth/internal/models"
	"github.com/sirupsen/logrus"
)

// EventUserRegistered is the routing key of registration events
const EventUserRegistered = "user.registered"

// Event is something that happened to a user
type Event struct {
	Type string
	User models.User
	At   time.Time
}

// Notifier delivers an event to one destination
type Notifier interface {
	Name() string
	Notify(ctx context.Context, ev Event) error
}

// Dispatcher fans events out to notifiers on a background worker
type Dispatcher struct {
	log       *logrus.Logger
	notifiers []Notifier
	timeout   time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan Event
	done   chan struct{}
}

// NewDispatcher starts the worker. Events beyond size are dropped.
func NewDispatcher(log *logrus.Logger, size int, notifiers ...Notifier) *Dispatcher {
	d := &Dispatcher{
		log:       log,
		notifiers: notifiers,
		timeout:   15 * time.Second,
		queue:     make(chan Event, size),
		done:      make(chan struct{}),
	}
	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for ev := range d.queue {
		for _, n := range d.notifiers {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			if err := n.Notify(ctx, ev); err != nil {
				d.log.WithFields(logrus.Fields{
					"notifier": n.Name(),
					"event":    ev.Type,
					"email":    ev.User.Email,
				}).Errorf("Notification failed: %v", err)
			}
			cancel()
		}
	}
}

// Dispatch queues an event without blocking
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.log.Warnf("Notification queue full, dropping %s for %s", ev.Type, ev.User.Email)
	}
}

// UserRegistered queues a registration event
func (d *Dispatcher) UserRegistered(user models.User) {
	d.Dispatch(Event{Type: EventUserRegistered, User: user, At: time.Now().UTC()})
}

// Close stops accepting events and waits for queued ones to be delivered
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}
