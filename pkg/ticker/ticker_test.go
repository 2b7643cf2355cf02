package ticker

import (
	"strings"
	"testing"

	"github.com/crystal-station/gostation/pkg/console"
	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/events"
	"github.com/crystal-station/gostation/pkg/items"
	"github.com/crystal-station/gostation/pkg/loc"
	"github.com/crystal-station/gostation/pkg/mind"
	"github.com/crystal-station/gostation/pkg/player"
	"github.com/crystal-station/gostation/pkg/prototype"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

type env struct {
	w       *ecs.World
	players *player.Manager
	minds   *mind.System
	bus     *events.Bus
	ticker  *Ticker
}

func newEnv(t *testing.T) *env {
	t.Helper()
	w := ecs.NewWorld()
	pm := prototype.NewManager()
	items.RegisterComponents(pm)
	mind.RegisterComponents(pm)
	RegisterComponents(pm)
	w.SetSpawner(pm)

	e := &env{
		w:       w,
		players: player.NewManager(),
		minds:   mind.NewSystem(w),
		bus:     events.NewBus(),
	}
	e.ticker = New(w, e.players, e.minds, e.bus, loc.New(language.AmericanEnglish))
	return e
}

func (e *env) join(name string) *player.Session {
	s := e.players.NewSession(name, "")
	e.players.SetStatus(s, player.StatusConnected)
	return s
}

func TestSetRunLevelRaisesEvent(t *testing.T) {
	e := newEnv(t)
	var got []GameRunLevelChangedEvent
	ecs.Subscribe(e.w.Bus, func(ev *GameRunLevelChangedEvent) { got = append(got, *ev) })

	e.ticker.SetRunLevel(InRound)
	e.ticker.SetRunLevel(InRound)
	e.ticker.EndRound()

	want := []GameRunLevelChangedEvent{{PreRoundLobby, InRound}, {InRound, PostRound}}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStartRoundSpawnsLobby(t *testing.T) {
	e := newEnv(t)
	alice := e.join("Alice")
	connecting := e.players.NewSession("Late", "")

	e.ticker.StartRound()
	uid, ok := alice.AttachedEntity()
	if !ok {
		t.Fatal("alice should be attached")
	}
	if alice.Status() != player.StatusInGame {
		t.Errorf("status = %v", alice.Status())
	}
	if a, ok := ecs.Get[player.Actor](e.w, uid); !ok || a.Session != alice {
		t.Error("body should carry alice's Actor")
	}
	if c, ok := ecs.Get[mind.Container](e.w, uid); !ok || c.Mind == nil || c.Mind.Session != alice {
		t.Error("body should hold alice's mind")
	}
	if e.w.MetaData(uid).Name != "Alice" {
		t.Errorf("body name = %q", e.w.MetaData(uid).Name)
	}
	if _, ok := connecting.AttachedEntity(); ok {
		t.Error("connecting session should not spawn")
	}
}

func TestRespawn(t *testing.T) {
	e := newEnv(t)
	alice := e.join("Alice")
	old, err := e.ticker.SpawnPlayer(alice)
	if err != nil {
		t.Fatal(err)
	}
	oldMind, _ := e.minds.ForSession(alice)

	fresh, err := e.ticker.Respawn(alice)
	if err != nil {
		t.Fatalf("Respawn: %v", err)
	}
	if fresh == old {
		t.Fatal("respawn should produce a new body")
	}
	if got, _ := alice.AttachedEntity(); got != fresh {
		t.Errorf("attached = %v, want %v", got, fresh)
	}
	if ecs.Has[player.Actor](e.w, old) {
		t.Error("old body should lose its Actor")
	}
	newMind, _ := e.minds.ForSession(alice)
	if newMind == oldMind {
		t.Error("respawn should start a fresh mind")
	}
	if oldMind.Session != nil {
		t.Error("old mind should be abandoned")
	}
}

func TestGhostAndAdminGhost(t *testing.T) {
	e := newEnv(t)
	alice := e.join("Alice")
	body, _ := e.ticker.SpawnPlayer(alice)
	e.w.SetCoordinates(body, ecs.Coordinates{X: 4, Y: 2})

	ghost, err := e.ticker.Ghost(alice, false)
	if err != nil {
		t.Fatalf("Ghost: %v", err)
	}
	if !ecs.Has[Ghost](e.w, ghost) || ecs.Has[AdminGhost](e.w, ghost) {
		t.Error("plain ghost expected")
	}
	if c := e.w.Transform(ghost).Coordinates; c.X != 4 || c.Y != 2 {
		t.Errorf("ghost at %+v, want body's coordinates", c)
	}
	m, _ := e.minds.ForSession(alice)
	if m.OwnedEntity != body || m.VisitingEntity != ghost {
		t.Errorf("mind owned=%v visiting=%v", m.OwnedEntity, m.VisitingEntity)
	}
	if ecs.Has[player.Actor](e.w, body) {
		t.Error("body should lose its Actor")
	}

	again, _ := e.ticker.Ghost(alice, false)
	if again != ghost {
		t.Error("ghosting as a ghost should be a no-op")
	}

	aghost, err := e.ticker.Ghost(alice, true)
	if err != nil {
		t.Fatal(err)
	}
	if !ecs.Has[AdminGhost](e.w, aghost) {
		t.Error("admin ghost should carry AdminGhost")
	}
	if e.w.Exists(ghost) {
		t.Error("replaced ghost should be deleted")
	}
	if m.VisitingEntity != aghost || m.OwnedEntity != body {
		t.Error("mind should visit the admin ghost and keep its body")
	}
}

func TestSuicide(t *testing.T) {
	e := newEnv(t)
	alice := e.join("Alice")
	if err := e.ticker.Suicide(alice); err != ErrNoEntity {
		t.Errorf("Suicide without body = %v", err)
	}

	body, _ := e.ticker.SpawnPlayer(alice)
	if err := e.ticker.Suicide(alice); err != nil {
		t.Fatalf("Suicide: %v", err)
	}
	st, _ := ecs.Get[MobState](e.w, body)
	if !st.Dead {
		t.Error("body should be dead")
	}
	ghost, _ := alice.AttachedEntity()
	g, ok := ecs.Get[Ghost](e.w, ghost)
	if !ok || g.CanReturn {
		t.Errorf("suicide ghost = %+v, %v", g, ok)
	}
}

func TestRestartRound(t *testing.T) {
	e := newEnv(t)
	alice := e.join("Alice")
	e.ticker.StartRound()

	e.ticker.RestartRound()
	if e.ticker.RunLevel() != PreRoundLobby {
		t.Errorf("run level = %v", e.ticker.RunLevel())
	}
	if len(e.w.Entities) != 0 {
		t.Errorf("%d entities survived restart", len(e.w.Entities))
	}
	if _, ok := alice.AttachedEntity(); ok {
		t.Error("alice should be detached")
	}
	if alice.Status() != player.StatusConnected {
		t.Errorf("status = %v", alice.Status())
	}
}

func TestRespawnFromGhostDeletesGhost(t *testing.T) {
	e := newEnv(t)
	alice := e.join("Alice")
	body, _ := e.ticker.SpawnPlayer(alice)
	ghost, err := e.ticker.Ghost(alice, false)
	if err != nil {
		t.Fatal(err)
	}

	fresh, err := e.ticker.Respawn(alice)
	if err != nil {
		t.Fatalf("Respawn: %v", err)
	}
	if e.w.Exists(ghost) {
		t.Error("the ghost should be deleted on respawn")
	}
	if !e.w.Exists(body) || !e.w.Exists(fresh) {
		t.Error("the old body stays and the new one exists")
	}
}

func TestBodyCommandsNeedConnectedPlayer(t *testing.T) {
	e := newEnv(t)
	host := console.NewHost(nil, e.bus, loc.New(language.AmericanEnglish))
	e.ticker.RegisterCommands(host)

	var out []string
	stray := &player.Session{ID: uuid.New(), Name: "Stray", SendFunc: func(ev events.Event) { out = append(out, ev.Text) }}
	e.bus.Subscribe(stray.ID, stray)

	for _, line := range []string{"ghost", "aghost", "suicide", "respawn"} {
		out = nil
		host.ExecuteCommand(stray, line)
		if len(out) == 0 || !strings.Contains(out[0], "connected player") {
			t.Errorf("%s output = %q", line, out)
		}
	}
	if n := len(e.w.Entities); n != 0 {
		t.Errorf("entities = %d, want 0", n)
	}
	if _, ok := e.minds.ForSession(stray); ok {
		t.Error("no mind should be bound to an unregistered session")
	}

	alice := e.join("Alice")
	host.ExecuteCommand(alice, "ghost")
	if _, ok := alice.AttachedEntity(); !ok {
		t.Error("a connected player should be able to ghost")
	}
}
