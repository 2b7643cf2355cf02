// Package sandbox implements sandbox mode: a server-wide switch that lets
// every player place entities and use debug conveniences such as respawn,
// an all-access ID, ghosting and suicide.
package sandbox

import (
	"log"
	"sync"

	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/events"
	"github.com/crystal-station/gostation/pkg/items"
	"github.com/crystal-station/gostation/pkg/netmsg"
	"github.com/crystal-station/gostation/pkg/placement"
	"github.com/crystal-station/gostation/pkg/player"
	"github.com/crystal-station/gostation/pkg/ticker"
)

// FreshIDPrototype is spawned when a player asks for access without an ID.
const FreshIDPrototype = "CaptainIDCard"

// PlayerManager finds sessions and reports status changes.
// *player.Manager satisfies it.
type PlayerManager interface {
	GetSessionByChannel(channel int) (*player.Session, bool)
	OnStatusChanged(fn func(player.StatusChange)) func()
}

// ConGroupController gates admin placement and commands.
// *adminmgr.ConGroupController satisfies it.
type ConGroupController interface {
	CanAdminPlace(s *player.Session) bool
	CanCommand(s *player.Session, cmd string) bool
}

// PlacementManager accepts a placement gate. *placement.Manager satisfies it.
type PlacementManager interface {
	SetAllowPlacementFunc(f placement.AllowPlacementFunc)
}

// ConsoleHost runs console commands. *console.Host satisfies it.
type ConsoleHost interface {
	ExecuteCommand(s *player.Session, line string) bool
}

// GameTicker respawns players. *ticker.Ticker satisfies it.
type GameTicker interface {
	Respawn(s *player.Session) (ecs.EntityUID, error)
}

// AccessLevels lists every access level ID. *prototype.Manager satisfies it.
type AccessLevels interface {
	AccessLevelIDs() []string
}

// Deps are the collaborators of the sandbox system.
type Deps struct {
	World      *ecs.World
	Bus        *events.Bus
	Dispatcher *netmsg.Dispatcher
	Players    PlayerManager
	ConGroup   ConGroupController
	Placement  PlacementManager
	Console    ConsoleHost
	Ticker     GameTicker
	Prototypes AccessLevels
}

// System owns the sandbox flag.
type System struct {
	Deps

	access    *items.AccessSystem
	inventory *items.InventorySystem
	slots     *items.ItemSlotsSystem
	hands     *items.HandsSystem

	mu      sync.RWMutex
	enabled bool

	unsubs []func()

	// OnAdminPlacement runs when an admin places something while sandbox
	// mode is off.
	OnAdminPlacement func(p *netmsg.MsgPlacement)
	// OnChanged runs after every SetEnabled.
	OnChanged func(enabled bool)
}

// New creates the sandbox system, disabled. Call Initialize to wire it up.
func New(d Deps) *System {
	return &System{
		Deps:      d,
		access:    items.NewAccessSystem(d.World),
		inventory: items.NewInventorySystem(d.World),
		slots:     items.NewItemSlotsSystem(d.World),
		hands:     items.NewHandsSystem(d.World),
	}
}

// Enabled reports whether sandbox mode is on.
func (s *System) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetEnabled sets sandbox mode and broadcasts the status to every session,
// even when the value did not change.
func (s *System) SetEnabled(v bool) {
	s.mu.Lock()
	s.enabled = v
	s.mu.Unlock()

	log.Printf("[sandbox] sandbox mode set to %v", v)
	s.Bus.Broadcast((&netmsg.MsgSandboxStatus{SandboxAllowed: v}).ToEvent())
	if s.OnChanged != nil {
		s.OnChanged(v)
	}
}

// Initialize subscribes to client messages, run level and status changes,
// and installs the placement gate.
func (s *System) Initialize() {
	s.unsubs = append(s.unsubs,
		netmsg.Subscribe(s.Dispatcher, s.sandboxRespawnReceived),
		netmsg.Subscribe(s.Dispatcher, s.sandboxGiveAccessReceived),
		netmsg.Subscribe(s.Dispatcher, s.sandboxGiveAghostReceived),
		netmsg.Subscribe(s.Dispatcher, s.sandboxSuicideReceived),
		ecs.Subscribe(s.World.Bus, s.onRunLevelChanged),
		s.Players.OnStatusChanged(s.onPlayerStatusChanged),
	)
	s.Placement.SetAllowPlacementFunc(s.allowPlacement)
}

// Shutdown removes the placement gate and every subscription.
func (s *System) Shutdown() {
	s.Placement.SetAllowPlacementFunc(nil)
	for _, u := range s.unsubs {
		u()
	}
	s.unsubs = nil
}

func (s *System) allowPlacement(p *netmsg.MsgPlacement) bool {
	if s.Enabled() {
		return true
	}
	session, ok := s.Players.GetSessionByChannel(p.MsgChannel)
	if !ok {
		return false
	}
	if s.ConGroup.CanAdminPlace(session) {
		if s.OnAdminPlacement != nil {
			s.OnAdminPlacement(p)
		}
		return true
	}
	return false
}

func (s *System) onRunLevelChanged(ev *ticker.GameRunLevelChangedEvent) {
	// Sandbox state does not survive a round restart.
	if ev.New == ticker.PreRoundLobby {
		s.SetEnabled(false)
	}
}

func (s *System) onPlayerStatusChanged(e player.StatusChange) {
	if e.New != player.StatusConnected || e.Old != player.StatusConnecting {
		return
	}
	s.Bus.EmitToSession(e.Session.ID, (&netmsg.MsgSandboxStatus{SandboxAllowed: s.Enabled()}).ToEvent())
}

// sender resolves the sending session through the player manager.
func (s *System) sender(args netmsg.EntitySessionEventArgs) (*player.Session, bool) {
	if args.SenderSession == nil {
		return nil, false
	}
	return s.Players.GetSessionByChannel(args.SenderSession.Channel)
}

func (s *System) sandboxRespawnReceived(_ *netmsg.MsgSandboxRespawn, args netmsg.EntitySessionEventArgs) {
	if !s.Enabled() {
		return
	}
	session, ok := s.sender(args)
	if !ok {
		return
	}
	if _, attached := session.AttachedEntity(); !attached {
		return
	}
	if _, err := s.Ticker.Respawn(session); err != nil {
		log.Printf("[sandbox] respawn %s: %v", session.Name, err)
	}
}

func (s *System) sandboxGiveAccessReceived(_ *netmsg.MsgSandboxGiveAccess, args netmsg.EntitySessionEventArgs) {
	if !s.Enabled() {
		return
	}
	session, ok := s.sender(args)
	if !ok {
		return
	}
	attached, ok := session.AttachedEntity()
	if !ok {
		return
	}
	s.GiveAllAccess(attached)
}

// GiveAllAccess upgrades the ID worn by uid to every access level, creating
// a fresh ID card when there is none.
func (s *System) GiveAllAccess(uid ecs.EntityUID) {
	allAccess := s.Prototypes.AccessLevelIDs()
	upgrade := func(id ecs.EntityUID) {
		s.access.TrySetTags(id, allAccess)
	}
	freshID := func() (ecs.EntityUID, bool) {
		card, err := s.World.Spawn(FreshIDPrototype, s.World.Transform(uid).Coordinates)
		if err != nil {
			log.Printf("[sandbox] spawning ID for %s: %v", uid, err)
			return ecs.Invalid, false
		}
		upgrade(card)
		if idc, ok := ecs.Get[items.IDCard](s.World, card); ok {
			idc.FullName = s.World.MetaData(uid).Name
		}
		return card, true
	}

	if slotEntity, ok := s.inventory.TryGetSlotEntity(uid, "id"); ok {
		if ecs.Has[items.Access](s.World, slotEntity) {
			upgrade(slotEntity)
		} else if pda, ok := ecs.Get[items.PDA](s.World, slotEntity); ok {
			if !pda.ContainedID.Valid() {
				card, ok := freshID()
				if ok && ecs.Has[items.ItemSlots](s.World, slotEntity) {
					s.slots.TryInsert(slotEntity, pda.IDSlot, card, ecs.Invalid)
				}
			} else {
				upgrade(pda.ContainedID)
			}
		}
		return
	}

	if ecs.Has[items.Hands](s.World, uid) {
		card, ok := freshID()
		if !ok {
			return
		}
		if !s.inventory.TryEquip(uid, card, "id", true, true) {
			s.hands.PickupOrDrop(uid, card)
		}
	}
}

func (s *System) sandboxGiveAghostReceived(_ *netmsg.MsgSandboxGiveAghost, args netmsg.EntitySessionEventArgs) {
	if !s.Enabled() {
		return
	}
	session, ok := s.sender(args)
	if !ok {
		return
	}
	cmd := "ghost"
	if s.ConGroup.CanCommand(session, "aghost") {
		cmd = "aghost"
	}
	s.Console.ExecuteCommand(session, cmd)
}

func (s *System) sandboxSuicideReceived(_ *netmsg.MsgSandboxSuicide, args netmsg.EntitySessionEventArgs) {
	if !s.Enabled() {
		return
	}
	session, ok := s.sender(args)
	if !ok {
		return
	}
	s.Console.ExecuteCommand(session, "suicide")
}
