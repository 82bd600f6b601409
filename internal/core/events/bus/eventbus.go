// Package bus is a small synchronous in-process pub/sub used to announce
// agent lifecycle changes.
//
// Handlers subscribe by event type, or to every type with Wildcard. Publish
// calls handlers in the publisher's goroutine in subscription order and joins
// their errors. Handlers should be quick.
package bus

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Event is an immutable message. Type is the routing key.
type Event struct {
	Type   string
	Source string
	Time   time.Time
	Data   any
}

func NewEvent(typ, source string, data any) Event {
	return Event{Type: typ, Source: source, Time: time.Now(), Data: data}
}

type Handler func(Event) error

type Subscription interface {
	ID() string
	EventType() string
	// Cancel stops delivery. Multiple calls are safe.
	Cancel()
}

// Stats are cumulative counters since the bus was created.
type Stats struct {
	Published uint64
	Delivered uint64
	Errors    uint64
}

type Bus interface {
	Publish(e Event) error
	Subscribe(eventType string, h Handler) Subscription
	Unsubscribe(s Subscription)
	Stats() Stats
}

type subscription struct {
	id        string
	eventType string
	handler   Handler
	bus       *inMemoryBus
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) Cancel()           { s.bus.remove(s) }

type inMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]*subscription

	published atomic.Uint64
	delivered atomic.Uint64
	errs      atomic.Uint64
}

func New() Bus {
	return &inMemoryBus{handlers: make(map[string][]*subscription)}
}

func (b *inMemoryBus) Subscribe(eventType string, h Handler) Subscription {
	s := &subscription{id: uuid.NewString(), eventType: eventType, handler: h, bus: b}
	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], s)
	b.mu.Unlock()
	return s
}

func (b *inMemoryBus) Unsubscribe(s Subscription) {
	if s != nil {
		s.Cancel()
	}
}

func (b *inMemoryBus) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[s.eventType]
	if i := slices.Index(subs, s); i >= 0 {
		// Copy so an in-flight Publish keeps its snapshot.
		b.handlers[s.eventType] = slices.Delete(slices.Clone(subs), i, i+1)
	}
}

func (b *inMemoryBus) Publish(e Event) error {
	b.mu.RLock()
	subs := slices.Concat(b.handlers[e.Type], b.handlers[Wildcard])
	b.mu.RUnlock()

	b.published.Add(1)
	var all error
	for _, s := range subs {
		b.delivered.Add(1)
		if err := s.handler(e); err != nil {
			b.errs.Add(1)
			all = errors.Join(all, err)
		}
	}
	return all
}

func (b *inMemoryBus) Stats() Stats {
	return Stats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Errors:    b.errs.Load(),
	}
}
