package event

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Publisher is what components emit events through.
type Publisher interface {
	Publish(ev Event)
}

// Handler consumes one event.
type Handler func(ev Event)

// Bus fans events out to subscribers synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers h for events of eventType.
func (b *Bus) Subscribe(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Publish delivers ev to every handler subscribed to its type.
// A panicking handler is logged and does not stop delivery to the others.
func (b *Bus) Publish(ev Event) {
	if ev == nil {
		return
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[ev.Type()]...)
	b.mu.RUnlock()

	logrus.Debugf("publishing event %s (%s) to %d handlers", ev.Type(), ev.ID(), len(handlers))

	for _, h := range handlers {
		b.deliver(h, ev)
	}
}

// Count returns the number of handlers for eventType.
func (b *Bus) Count(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

func (b *Bus) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("event handler for %s panicked: %v", ev.Type(), r)
		}
	}()
	h(ev)
}

// Recorder is a Publisher that keeps every event. Useful in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish records ev.
func (r *Recorder) Publish(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of the given type.
func (r *Recorder) OfType(eventType string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, ev := range r.events {
		if ev.Type() == eventType {
			out = append(out, ev)
		}
	}
	return out
}
