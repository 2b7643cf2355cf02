package player

import (
	"sync"
	"time"

	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/events"
	"github.com/google/uuid"
)

// Status tracks where a session is in its connection lifecycle.
type Status int

const (
	StatusConnecting   Status = iota // Handshake in progress
	StatusConnected                  // Authenticated, in the lobby
	StatusInGame                     // Attached to an entity in the round
	StatusDisconnected               // Gone
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusInGame:
		return "ingame"
	case StatusDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is one connected client.
// It implements events.Subscriber so it can receive events from the bus.
type Session struct {
	ID       uuid.UUID
	Name     string
	Channel  int
	Addr     string
	ConnTime time.Time

	// SendFunc delivers an event over the session's transport.
	// If nil, events are dropped.
	SendFunc func(ev events.Event)

	mu       sync.Mutex
	status   Status
	attached ecs.EntityUID
	closed   bool
}

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// AttachedEntity returns the entity the session currently controls.
func (s *Session) AttachedEntity() (ecs.EntityUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached, s.attached.Valid()
}

// Receive implements events.Subscriber.
func (s *Session) Receive(ev events.Event) {
	if s.SendFunc != nil {
		s.SendFunc(ev)
	}
}

// Closed implements events.Subscriber.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close marks the session closed; the bus stops delivering to it.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Compile-time check that Session implements events.Subscriber.
var _ events.Subscriber = (*Session)(nil)

// Actor marks an entity as controlled by a player session.
type Actor struct {
	Session *Session
}
