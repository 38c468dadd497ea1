// Package bus implements a typed, in-process publish/subscribe primitive
// used to fan lifecycle events out to telemetry mirrors, CLI progress
// printers, and tests without coupling publishers to any one subscriber.
package bus

import (
	"log/slog"
	"sync"
)

// Handler receives a published payload. A Handler must not panic; if it
// does, the Bus recovers, logs, and continues delivering to remaining
// subscribers (mirrors the corpus's "handler exceptions never break the
// publisher" rule).
type Handler func(event string, payload any)

// Unsubscribe removes a previously registered handler.
type Unsubscribe func()

// Bus is a typed in-process pub/sub. Handlers for a given event are invoked
// synchronously, in registration order, from the publisher's goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]*subscription
	seq      uint64
}

type subscription struct {
	id int
	h  Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]*subscription)}
}

// Subscribe registers h for event and returns a function that removes it.
func (b *Bus) Subscribe(event string, h Handler) Unsubscribe {
	b.mu.Lock()
	b.seq++
	id := int(b.seq)
	b.handlers[event] = append(b.handlers[event], &subscription{id: id, h: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[event]
		for i, s := range subs {
			if s.id == id {
				b.handlers[event] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish invokes every handler registered for event, in registration order,
// synchronously. A handler that panics is recovered and logged; it never
// prevents delivery to subsequent handlers, nor does it propagate to the
// publisher.
func (b *Bus) Publish(event string, payload any) {
	b.mu.RLock()
	subs := make([]*subscription, len(b.handlers[event]))
	copy(subs, b.handlers[event])
	b.mu.RUnlock()

	for _, s := range subs {
		b.invoke(s.h, event, payload)
	}
}

func (b *Bus) invoke(h Handler, event string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bus: handler panicked", "event", event, "recover", r)
		}
	}()
	h(event, payload)
}
