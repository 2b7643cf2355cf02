// Package mind tracks the persistent identity behind player-controlled
// entities. A Mind outlives any single body: it moves between entities on
// respawn and ghosting, and it carries the roles granted to the player.
package mind

import (
	"log"
	"time"

	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/player"
	"github.com/crystal-station/gostation/pkg/prototype"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Role is a game-rule assignment held by a mind.
type Role struct {
	Name       string
	Antagonist bool
	Granted    time.Time
}

// Mind is the identity behind a body.
type Mind struct {
	ID             int
	CharacterName  string
	Session        *player.Session // nil while the player is disconnected
	OwnedEntity    ecs.EntityUID
	VisitingEntity ecs.EntityUID
	Roles          []Role
}

// CurrentEntity returns the entity the mind is occupying: the visited entity
// if any, otherwise the owned one.
func (m *Mind) CurrentEntity() (ecs.EntityUID, bool) {
	if m.VisitingEntity.Valid() {
		return m.VisitingEntity, true
	}
	return m.OwnedEntity, m.OwnedEntity.Valid()
}

// HasRole reports whether the mind holds a role with the given name.
func (m *Mind) HasRole(name string) bool {
	for _, r := range m.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// Container links a body to the mind inhabiting it. Mind is nil for an
// empty body that once had a mind.
type Container struct {
	Mind *Mind
}

// System creates minds and moves them between bodies.
type System struct {
	w         *ecs.World
	minds     map[int]*Mind
	bySession map[uuid.UUID]*Mind
	nextID    int
}

// NewSystem creates a mind system over w.
func NewSystem(w *ecs.World) *System {
	return &System{
		w:         w,
		minds:     make(map[int]*Mind),
		bySession: make(map[uuid.UUID]*Mind),
	}
}

// CreateMind allocates a mind for session with no body.
func (s *System) CreateMind(session *player.Session, name string) *Mind {
	s.nextID++
	m := &Mind{ID: s.nextID, CharacterName: name, Session: session}
	s.minds[m.ID] = m
	if session != nil {
		s.bySession[session.ID] = m
	}
	return m
}

// ForSession returns the mind bound to a session.
func (s *System) ForSession(session *player.Session) (*Mind, bool) {
	if session == nil {
		return nil, false
	}
	m, ok := s.bySession[session.ID]
	return m, ok
}

// SetSession rebinds m to session; nil detaches it.
func (s *System) SetSession(m *Mind, session *player.Session) {
	if m.Session != nil {
		delete(s.bySession, m.Session.ID)
	}
	m.Session = session
	if session != nil {
		s.bySession[session.ID] = m
	}
}

// TransferTo makes uid the mind's owned body, leaving the old body empty.
// Passing ecs.Invalid leaves the mind bodiless.
func (s *System) TransferTo(m *Mind, uid ecs.EntityUID) {
	if m.OwnedEntity.Valid() {
		if c, ok := ecs.Get[Container](s.w, m.OwnedEntity); ok && c.Mind == m {
			c.Mind = nil
		}
	}
	s.Unvisit(m)

	m.OwnedEntity = uid
	if uid.Valid() {
		c, ok := ecs.Get[Container](s.w, uid)
		if !ok {
			c = ecs.Add(s.w, uid, &Container{})
		}
		if c.Mind != nil && c.Mind != m {
			c.Mind.OwnedEntity = ecs.Invalid
		}
		c.Mind = m
	}
	log.Printf("[mind] mind %d (%s) now owns entity %s", m.ID, m.CharacterName, uid)
}

// Visit puts the mind temporarily into uid without giving up its owned body.
func (s *System) Visit(m *Mind, uid ecs.EntityUID) {
	s.Unvisit(m)
	m.VisitingEntity = uid
	ecs.Add(s.w, uid, &Visiting{Mind: m})
}

// Unvisit returns the mind to its owned body.
func (s *System) Unvisit(m *Mind) {
	if !m.VisitingEntity.Valid() {
		return
	}
	ecs.Remove[Visiting](s.w, m.VisitingEntity)
	m.VisitingEntity = ecs.Invalid
}

// AddRole grants a role to m. Granting a role it already holds is a no-op.
func (s *System) AddRole(m *Mind, name string, antagonist bool) bool {
	if m.HasRole(name) {
		return false
	}
	m.Roles = append(m.Roles, Role{Name: name, Antagonist: antagonist, Granted: time.Now()})
	log.Printf("[mind] mind %d (%s) granted role %s", m.ID, m.CharacterName, name)
	return true
}

// Visiting marks an entity a mind is visiting (a ghost, a remote camera).
type Visiting struct {
	Mind *Mind
}

// RegisterComponents binds the mindContainer prototype component.
func RegisterComponents(pm *prototype.Manager) {
	pm.RegisterComponent("mindContainer", func(w *ecs.World, uid ecs.EntityUID, _ *yaml.Node) error {
		ecs.Add(w, uid, &Container{})
		return nil
	})
}

// WipeMind detaches the session from its current mind, leaving the mind
// and its body behind. The next CreateMind starts fresh.
func (s *System) WipeMind(session *player.Session) {
	m, ok := s.ForSession(session)
	if !ok {
		return
	}
	s.SetSession(m, nil)
	s.Unvisit(m)
	log.Printf("[mind] mind %d (%s) wiped from session %s", m.ID, m.CharacterName, session.Name)
}
