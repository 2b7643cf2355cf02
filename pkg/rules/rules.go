// Package rules assigns antagonist roles. Each rule only records the role on
// the player's mind and greets the player; objectives are not simulated.
package rules

import (
	"log"

	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/events"
	"github.com/crystal-station/gostation/pkg/loc"
	"github.com/crystal-station/gostation/pkg/mind"
	"github.com/crystal-station/gostation/pkg/player"
)

// Role names.
const (
	RoleTraitor  = "Traitor"
	RoleNukeops  = "NuclearOperative"
	RolePirate   = "Pirate"
	RoleZombie   = "Zombie"
	RoleEvilTwin = "EvilTwin"
)

// Deps are the collaborators every rule shares.
type Deps struct {
	World *ecs.World
	Minds *mind.System
	Bus   *events.Bus
	Loc   *loc.Catalog
}

// grant records role on m and greets its player. It returns false if m
// already held the role.
func (d *Deps) grant(m *mind.Mind, role, greetingKey string, args ...any) bool {
	if !d.Minds.AddRole(m, role, true) {
		return false
	}
	log.Printf("[rules] %s (mind %d) made %s", m.CharacterName, m.ID, role)
	if m.Session != nil && d.Bus != nil {
		d.Bus.EmitToSession(m.Session.ID, events.Event{
			Type: events.EvText,
			Text: d.Loc.GetString(greetingKey, args...),
		})
		d.Bus.EmitToSession(m.Session.ID, events.Event{
			Type: events.EvRole,
			Data: map[string]any{"role": role},
		})
	}
	return true
}

// TraitorRule makes traitors.
type TraitorRule struct {
	Deps
}

// MakeTraitor makes the session's mind a traitor.
func (r *TraitorRule) MakeTraitor(s *player.Session) bool {
	m, ok := r.Minds.ForSession(s)
	if !ok {
		log.Printf("[rules] traitor: %s has no mind", s.Name)
		return false
	}
	return r.grant(m, RoleTraitor, "role-traitor-greeting")
}

// NukeopsRule makes nuclear operatives.
type NukeopsRule struct {
	Deps
}

// MakeLoneNukie makes m a lone nuclear operative.
func (r *NukeopsRule) MakeLoneNukie(m *mind.Mind) bool {
	return r.grant(m, RoleNukeops, "role-nukeops-greeting")
}

// PiratesRule makes pirates.
type PiratesRule struct {
	Deps
}

// MakePirate makes m a pirate.
func (r *PiratesRule) MakePirate(m *mind.Mind) bool {
	return r.grant(m, RolePirate, "role-pirate-greeting")
}

// Zombie marks a zombified entity.
type Zombie struct{}

// Zombify turns entities into zombies.
type Zombify struct {
	Deps
}

// ZombifyEntity turns uid into a zombie. Entities without a mind still turn.
func (z *Zombify) ZombifyEntity(uid ecs.EntityUID) bool {
	if !z.World.Exists(uid) || ecs.Has[Zombie](z.World, uid) {
		return false
	}
	ecs.Add(z.World, uid, &Zombie{})
	log.Printf("[rules] zombified %s (%s)", z.World.MetaData(uid).Name, uid)
	if c, ok := ecs.Get[mind.Container](z.World, uid); ok && c.Mind != nil {
		z.grant(c.Mind, RoleZombie, "role-zombie-greeting")
	}
	return true
}

// EvilTwinOf links a twin to the entity it impersonates.
type EvilTwinOf struct {
	Target ecs.EntityUID
}

// EvilTwin spawns evil twins.
type EvilTwin struct {
	Deps
	Prototype string
}

// MakeTwin spawns a copy of target next to it. The twin gets the target's
// name and a mind holding the evil twin role, which waits for a player to
// take it over.
func (e *EvilTwin) MakeTwin(target ecs.EntityUID) (ecs.EntityUID, bool) {
	if !e.World.Exists(target) {
		return ecs.Invalid, false
	}
	proto := e.Prototype
	if proto == "" {
		proto = e.World.MetaData(target).Prototype
	}
	coords := e.World.Transform(target).Coordinates
	coords.X++
	twin, err := e.World.Spawn(proto, coords)
	if err != nil {
		log.Printf("[rules] evil twin of %s: %v", target, err)
		return ecs.Invalid, false
	}
	name := e.World.MetaData(target).Name
	e.World.SetName(twin, name)
	ecs.Add(e.World, twin, &EvilTwinOf{Target: target})
	m := e.Minds.CreateMind(nil, name)
	e.Minds.TransferTo(m, twin)
	e.grant(m, RoleEvilTwin, "role-eviltwin-greeting", "name", name)
	log.Printf("[rules] spawned evil twin %s of %s (%s)", twin, name, target)
	return twin, true
}
