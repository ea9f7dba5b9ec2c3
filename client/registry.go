package client

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/zidanaetrna/givebit-sdk/session"
)

// Handler receives one event. Handlers for the same kind run in
// registration order; a panicking handler is recovered and logged and
// does not stop delivery to the handlers after it.
type Handler func(session.Event)

// Subscription identifies one registered handler for removal.
type Subscription struct {
	kind session.EventType
	id   uint64
}

type subscriber struct {
	id uint64
	fn Handler
}

type registry struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[session.EventType][]subscriber
	logger   zerolog.Logger
}

func newRegistry(logger zerolog.Logger) *registry {
	return &registry{
		handlers: make(map[session.EventType][]subscriber),
		logger:   logger,
	}
}

func (r *registry) subscribe(kind session.EventType, fn Handler) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.handlers[kind] = append(r.handlers[kind], subscriber{id: r.nextID, fn: fn})
	return &Subscription{kind: kind, id: r.nextID}
}

func (r *registry) unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.handlers[sub.kind]
	for i, s := range subs {
		if s.id == sub.id {
			r.handlers[sub.kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// dispatch delivers ev to a snapshot of the handlers registered for its
// kind. Handlers removed during dispatch still receive this event;
// removal takes effect for subsequent deliveries only.
func (r *registry) dispatch(ev session.Event) {
	r.mu.Lock()
	subs := make([]subscriber, len(r.handlers[ev.Type]))
	copy(subs, r.handlers[ev.Type])
	r.mu.Unlock()

	for _, s := range subs {
		r.invoke(s, ev)
	}
}

func (r *registry) invoke(s subscriber, ev session.Event) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error().
				Str("event", string(ev.Type)).
				Interface("panic", p).
				Msg("event handler panicked")
		}
	}()
	s.fn(ev)
}
