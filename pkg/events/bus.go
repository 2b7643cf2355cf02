package events

import (
	"sync"

	"github.com/google/uuid"
)

// Subscriber receives events from the bus.
type Subscriber interface {
	Receive(ev Event)
	Closed() bool
}

// Bus is a per-session pub/sub event bus with support for global subscribers.
// Game code emits structured events; each subscriber (a client connection,
// a logger, a test recorder) encodes them for its own transport.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID][]Subscriber
	global      []Subscriber
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[uuid.UUID][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific session's events.
func (b *Bus) Subscribe(session uuid.UUID, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[session] = append(b.subscribers[session], sub)
}

// Unsubscribe removes a subscriber for a specific session.
func (b *Bus) Unsubscribe(session uuid.UUID, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subscribers[session]
	for i, s := range subs {
		if s == sub {
			b.subscribers[session] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subscribers[session]) == 0 {
		delete(b.subscribers, session)
	}
}

// SubscribeGlobal registers a subscriber that receives all events.
func (b *Bus) SubscribeGlobal(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.global = append(b.global, sub)
}

// Emit sends an event to the session in ev.Session and all global subscribers.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	subs := b.subscribers[ev.Session]
	globals := b.global
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
	for _, s := range globals {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

// EmitToSession sends an event to a specific session (overriding ev.Session).
func (b *Bus) EmitToSession(session uuid.UUID, ev Event) {
	ev.Session = session
	b.Emit(ev)
}

// Broadcast sends an event to every subscribed session. Global subscribers
// receive it once, with Session left as uuid.Nil.
func (b *Bus) Broadcast(ev Event) {
	b.mu.RLock()
	targets := make(map[uuid.UUID][]Subscriber, len(b.subscribers))
	for id, subs := range b.subscribers {
		targets[id] = subs
	}
	globals := b.global
	b.mu.RUnlock()

	for id, subs := range targets {
		sessionEv := ev
		sessionEv.Session = id
		for _, s := range subs {
			if !s.Closed() {
				s.Receive(sessionEv)
			}
		}
	}

	ev.Session = uuid.Nil
	for _, s := range globals {
		if !s.Closed() {
			s.Receive(ev)
		}
	}
}

// SessionSubscribers returns the number of subscribers for a session.
func (b *Bus) SessionSubscribers(session uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[session])
}

// Cleanup removes closed subscribers from all lists.
func (b *Bus) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for session, subs := range b.subscribers {
		var active []Subscriber
		for _, s := range subs {
			if !s.Closed() {
				active = append(active, s)
			}
		}
		if len(active) == 0 {
			delete(b.subscribers, session)
		} else {
			b.subscribers[session] = active
		}
	}

	var activeGlobal []Subscriber
	for _, s := range b.global {
		if !s.Closed() {
			activeGlobal = append(activeGlobal, s)
		}
	}
	b.global = activeGlobal
}
