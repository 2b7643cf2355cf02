// Package placement spawns entities that clients place in the world,
// subject to a pluggable permission check.
package placement

import (
	"log"
	"sync"

	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/events"
	"github.com/crystal-station/gostation/pkg/loc"
	"github.com/crystal-station/gostation/pkg/netmsg"
)

// AllowPlacementFunc decides whether a placement may go ahead.
type AllowPlacementFunc func(p *netmsg.MsgPlacement) bool

// Manager handles placement requests. With no AllowPlacementFunc installed
// every placement is denied.
type Manager struct {
	w   *ecs.World
	bus *events.Bus
	loc *loc.Catalog

	mu    sync.RWMutex
	allow AllowPlacementFunc

	// OnResult, if set, runs after every request with whether it was allowed.
	OnResult func(allowed bool)
}

// NewManager creates a placement manager.
func NewManager(w *ecs.World, bus *events.Bus, catalog *loc.Catalog) *Manager {
	return &Manager{w: w, bus: bus, loc: catalog}
}

// SetAllowPlacementFunc installs the permission check; nil removes it.
func (m *Manager) SetAllowPlacementFunc(f AllowPlacementFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allow = f
}

// AllowPlacementFunc returns the installed permission check.
func (m *Manager) AllowPlacementFunc() AllowPlacementFunc {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allow
}

// Subscribe routes MsgPlacement from clients to HandlePlacement.
func (m *Manager) Subscribe(d *netmsg.Dispatcher) func() {
	return netmsg.Subscribe(d, m.HandlePlacement)
}

// HandlePlacement checks and performs one placement.
func (m *Manager) HandlePlacement(p *netmsg.MsgPlacement, args netmsg.EntitySessionEventArgs) {
	if args.SenderSession != nil {
		p.MsgChannel = args.SenderSession.Channel
	}
	allow := m.AllowPlacementFunc()
	allowed := allow != nil && allow(p)
	if m.OnResult != nil {
		m.OnResult(allowed)
	}

	if !allowed {
		if args.SenderSession != nil {
			log.Printf("[placement] denied %s for %s", p.EntityType, args.SenderSession.Name)
			m.reply(args, events.Event{Type: events.EvText, Text: m.loc.GetString("sandbox-placement-denied")})
		}
		return
	}

	uid, err := m.w.Spawn(p.EntityType, p.Coordinates)
	if err != nil {
		log.Printf("[placement] %v", err)
		m.reply(args, events.Event{Type: events.EvText, Text: "Error: " + err.Error()})
		return
	}
	m.reply(args, events.Event{
		Type: events.EvPlacement,
		Data: map[string]any{"entity": uid, "prototype": p.EntityType},
	})
}

func (m *Manager) reply(args netmsg.EntitySessionEventArgs, ev events.Event) {
	if m.bus == nil || args.SenderSession == nil {
		return
	}
	m.bus.EmitToSession(args.SenderSession.ID, ev)
}
