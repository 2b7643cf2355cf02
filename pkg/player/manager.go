package player

import (
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/google/uuid"
)

// StatusChange describes a session moving between statuses.
type StatusChange struct {
	Session *Session
	Old     Status
	New     Status
}

type statusListener struct {
	id int
	fn func(StatusChange)
}

// Manager tracks every live session, indexed by ID, network channel and name.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[uuid.UUID]*Session
	byChannel   map[int]*Session
	nextChannel int

	lmu       sync.Mutex
	listeners []statusListener
	nextLID   int
}

// NewManager creates an empty player manager.
func NewManager() *Manager {
	return &Manager{
		sessions:  make(map[uuid.UUID]*Session),
		byChannel: make(map[int]*Session),
	}
}

// NewSession allocates a session in the Connecting state and registers it.
func (m *Manager) NewSession(name, addr string) *Session {
	m.mu.Lock()
	m.nextChannel++
	s := &Session{
		ID:       uuid.New(),
		Name:     name,
		Channel:  m.nextChannel,
		Addr:     addr,
		ConnTime: time.Now(),
		status:   StatusConnecting,
	}
	m.sessions[s.ID] = s
	m.byChannel[s.Channel] = s
	m.mu.Unlock()
	return s
}

// Remove unregisters a session, marking it Disconnected.
func (m *Manager) Remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	delete(m.byChannel, s.Channel)
	m.mu.Unlock()

	m.SetStatus(s, StatusDisconnected)
	s.Close()
}

// Get returns the session with the given ID.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetSessionByChannel returns the session bound to a network channel.
func (m *Manager) GetSessionByChannel(channel int) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byChannel[channel]
	return s, ok
}

// GetSessionByName returns the first live session whose name matches, case-insensitively.
func (m *Manager) GetSessionByName(name string) (*Session, bool) {
	for _, s := range m.Sessions() {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return nil, false
}

// Sessions returns all live sessions ordered by channel.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// CountByStatus returns the number of live sessions in each status.
func (m *Manager) CountByStatus() map[Status]int {
	counts := make(map[Status]int)
	for _, s := range m.Sessions() {
		counts[s.Status()]++
	}
	return counts
}

// OnStatusChanged registers fn to run after every status transition.
// The returned func removes it.
func (m *Manager) OnStatusChanged(fn func(StatusChange)) func() {
	m.lmu.Lock()
	m.nextLID++
	id := m.nextLID
	m.listeners = append(m.listeners, statusListener{id: id, fn: fn})
	m.lmu.Unlock()

	return func() {
		m.lmu.Lock()
		defer m.lmu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetStatus moves s to status and notifies listeners if it changed.
func (m *Manager) SetStatus(s *Session, status Status) {
	s.mu.Lock()
	old := s.status
	s.status = status
	s.mu.Unlock()

	if old == status {
		return
	}
	log.Printf("[player] %s (%s) %s -> %s", s.Name, s.ID, old, status)

	m.lmu.Lock()
	ls := append([]statusListener(nil), m.listeners...)
	m.lmu.Unlock()

	change := StatusChange{Session: s, Old: old, New: status}
	for _, l := range ls {
		l.fn(change)
	}
}

// Attach binds s to uid and moves it in-game.
func (m *Manager) Attach(s *Session, uid ecs.EntityUID) {
	s.mu.Lock()
	s.attached = uid
	s.mu.Unlock()
	if uid.Valid() {
		m.SetStatus(s, StatusInGame)
	}
}

// Detach clears the session's attached entity and returns it to the lobby.
func (m *Manager) Detach(s *Session) {
	s.mu.Lock()
	s.attached = ecs.Invalid
	s.mu.Unlock()
	if s.Status() == StatusInGame {
		m.SetStatus(s, StatusConnected)
	}
}
