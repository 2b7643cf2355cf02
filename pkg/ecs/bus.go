package ecs

import (
	"reflect"
	"sync"
)

// EventBus delivers local (in-process) events to typed subscribers.
// Handlers run synchronously on the raising goroutine, in subscription order.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]handlerEntry
	nextID   int
}

type handlerEntry struct {
	id int
	fn any
}

// NewEventBus creates an empty local event bus.
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[reflect.Type][]handlerEntry)}
}

// Subscribe registers fn for events of type T. The returned func removes it.
func Subscribe[T any](b *EventBus, fn func(*T)) func() {
	t := reflect.TypeFor[T]()

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[t] = append(b.handlers[t], handlerEntry{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		hs := b.handlers[t]
		for i, h := range hs {
			if h.id == id {
				b.handlers[t] = append(hs[:i:i], hs[i+1:]...)
				break
			}
		}
		if len(b.handlers[t]) == 0 {
			delete(b.handlers, t)
		}
	}
}

// Raise delivers ev to every subscriber of type T.
func Raise[T any](b *EventBus, ev *T) {
	b.mu.RLock()
	hs := append([]handlerEntry(nil), b.handlers[reflect.TypeFor[T]()]...)
	b.mu.RUnlock()

	for _, h := range hs {
		h.fn.(func(*T))(ev)
	}
}

// Subscribers returns the number of handlers registered for type T.
func Subscribers[T any](b *EventBus) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[reflect.TypeFor[T]()])
}
