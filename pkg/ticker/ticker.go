// Package ticker runs the round state machine and moves players between
// bodies: joining, respawning, ghosting and suicide.
package ticker

import (
	"errors"
	"fmt"
	"log"

	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/events"
	"github.com/crystal-station/gostation/pkg/loc"
	"github.com/crystal-station/gostation/pkg/mind"
	"github.com/crystal-station/gostation/pkg/player"
)

// RunLevel is the round state.
type RunLevel int

const (
	PreRoundLobby RunLevel = iota
	InRound
	PostRound
)

func (l RunLevel) String() string {
	switch l {
	case PreRoundLobby:
		return "PreRoundLobby"
	case InRound:
		return "InRound"
	case PostRound:
		return "PostRound"
	default:
		return "Unknown"
	}
}

// GameRunLevelChangedEvent is raised on the local bus when the run level changes.
type GameRunLevelChangedEvent struct {
	Old RunLevel
	New RunLevel
}

// Default prototypes.
const (
	DefaultPlayerPrototype        = "MobHuman"
	DefaultObserverPrototype      = "MobObserver"
	DefaultAdminObserverPrototype = "AdminObserver"
)

// ErrNoEntity is returned when a session has no attached entity.
var ErrNoEntity = errors.New("ticker: session has no attached entity")

// Ticker owns the run level and player spawning.
type Ticker struct {
	w       *ecs.World
	players *player.Manager
	minds   *mind.System
	bus     *events.Bus
	loc     *loc.Catalog

	runLevel RunLevel

	PlayerPrototype        string
	ObserverPrototype      string
	AdminObserverPrototype string
	SpawnPoint             ecs.Coordinates
}

// New creates a ticker in the pre-round lobby.
func New(w *ecs.World, players *player.Manager, minds *mind.System, bus *events.Bus, catalog *loc.Catalog) *Ticker {
	return &Ticker{
		w:                      w,
		players:                players,
		minds:                  minds,
		bus:                    bus,
		loc:                    catalog,
		runLevel:               PreRoundLobby,
		PlayerPrototype:        DefaultPlayerPrototype,
		ObserverPrototype:      DefaultObserverPrototype,
		AdminObserverPrototype: DefaultAdminObserverPrototype,
	}
}

// RunLevel returns the current run level.
func (t *Ticker) RunLevel() RunLevel {
	return t.runLevel
}

// SetRunLevel changes the run level, raising GameRunLevelChangedEvent and
// broadcasting the new level. Setting the current level does nothing.
func (t *Ticker) SetRunLevel(l RunLevel) {
	old := t.runLevel
	if old == l {
		return
	}
	t.runLevel = l
	log.Printf("[ticker] run level %s -> %s", old, l)
	ecs.Raise(t.w.Bus, &GameRunLevelChangedEvent{Old: old, New: l})
	if t.bus != nil {
		t.bus.Broadcast(events.Event{
			Type: events.EvRunLevel,
			Data: map[string]any{"old": old.String(), "new": l.String()},
		})
	}
}

// StartRound moves to InRound and spawns every session waiting in the lobby.
func (t *Ticker) StartRound() {
	if t.runLevel == InRound {
		return
	}
	t.SetRunLevel(InRound)
	for _, s := range t.players.Sessions() {
		if s.Status() != player.StatusConnected {
			continue
		}
		if _, err := t.SpawnPlayer(s); err != nil {
			log.Printf("[ticker] spawning %s: %v", s.Name, err)
		}
	}
}

// EndRound moves to PostRound.
func (t *Ticker) EndRound() {
	t.SetRunLevel(PostRound)
}

// RestartRound returns every player to the lobby, clears the world and
// goes back to PreRoundLobby.
func (t *Ticker) RestartRound() {
	for _, s := range t.players.Sessions() {
		t.notify(s, t.loc.GetString("ticker-round-restarting"))
		t.minds.WipeMind(s)
		t.players.Detach(s)
	}
	for uid := range t.w.Entities {
		t.w.Delete(uid)
	}
	t.SetRunLevel(PreRoundLobby)
}

// SpawnPlayer gives a session a fresh body and attaches it.
func (t *Ticker) SpawnPlayer(s *player.Session) (ecs.EntityUID, error) {
	uid, err := t.w.Spawn(t.PlayerPrototype, t.SpawnPoint)
	if err != nil {
		return ecs.Invalid, fmt.Errorf("ticker: spawn player %s: %w", s.Name, err)
	}
	t.w.SetName(uid, s.Name)

	m, ok := t.minds.ForSession(s)
	if !ok {
		m = t.minds.CreateMind(s, s.Name)
	}
	t.minds.TransferTo(m, uid)
	t.attach(s, ecs.Invalid, uid)
	return uid, nil
}

// Respawn abandons the session's current body and mind and spawns a new one.
func (t *Ticker) Respawn(s *player.Session) (ecs.EntityUID, error) {
	old, _ := s.AttachedEntity()
	if old.Valid() {
		ecs.Remove[player.Actor](t.w, old)
	}
	t.minds.WipeMind(s)
	t.players.Detach(s)
	if old.Valid() && ecs.Has[Ghost](t.w, old) {
		t.w.Delete(old)
	}

	uid, err := t.SpawnPlayer(s)
	if err != nil {
		return ecs.Invalid, err
	}
	t.notify(s, t.loc.GetString("ticker-respawned"))
	log.Printf("[ticker] respawned %s as %s", s.Name, uid)
	return uid, nil
}

// Ghost moves the session into an observer, leaving its body behind.
// An admin ghost uses the admin observer prototype.
func (t *Ticker) Ghost(s *player.Session, admin bool) (ecs.EntityUID, error) {
	return t.ghost(s, admin, true)
}

func (t *Ticker) ghost(s *player.Session, admin, canReturn bool) (ecs.EntityUID, error) {
	body, attached := s.AttachedEntity()
	if attached && ecs.Has[Ghost](t.w, body) && ecs.Has[AdminGhost](t.w, body) == admin {
		return body, nil
	}

	coords := t.SpawnPoint
	if attached {
		coords = t.w.Transform(body).Coordinates
	}
	proto := t.ObserverPrototype
	if admin {
		proto = t.AdminObserverPrototype
	}
	ghost, err := t.w.Spawn(proto, coords)
	if err != nil {
		return ecs.Invalid, fmt.Errorf("ticker: ghost %s: %w", s.Name, err)
	}
	if g, ok := ecs.Get[Ghost](t.w, ghost); ok {
		g.CanReturn = canReturn
	}

	m, ok := t.minds.ForSession(s)
	if !ok {
		m = t.minds.CreateMind(s, s.Name)
	}
	t.w.SetName(ghost, m.CharacterName)
	if attached && ecs.Has[Ghost](t.w, body) {
		// Replacing one ghost with another.
		t.minds.Unvisit(m)
		t.w.Delete(body)
	}
	t.minds.Visit(m, ghost)
	t.attach(s, body, ghost)
	t.notify(s, t.loc.GetString("ticker-ghosted"))
	return ghost, nil
}

// Suicide kills the session's attached mob and ghosts it without return.
func (t *Ticker) Suicide(s *player.Session) error {
	body, ok := s.AttachedEntity()
	if !ok {
		return ErrNoEntity
	}
	if ecs.Has[Ghost](t.w, body) {
		return nil
	}
	if st, ok := ecs.Get[MobState](t.w, body); ok {
		st.Dead = true
	}
	t.notify(s, t.loc.GetString("ticker-suicide"))
	log.Printf("[ticker] %s committed suicide as %s", s.Name, body)
	_, err := t.ghost(s, false, false)
	return err
}

func (t *Ticker) attach(s *player.Session, from, to ecs.EntityUID) {
	if from.Valid() {
		ecs.Remove[player.Actor](t.w, from)
	}
	ecs.Add(t.w, to, &player.Actor{Session: s})
	t.players.Attach(s, to)
	if t.bus != nil {
		t.bus.EmitToSession(s.ID, events.Event{
			Type: events.EvAttach,
			Data: map[string]any{"entity": to},
		})
	}
}

func (t *Ticker) notify(s *player.Session, text string) {
	if t.bus != nil {
		t.bus.EmitToSession(s.ID, events.Event{Type: events.EvText, Text: text})
	}
}
