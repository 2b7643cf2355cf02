package verbs

import (
	"strings"
	"sync"
	"testing"

	"github.com/crystal-station/gostation/pkg/adminlog"
	"github.com/crystal-station/gostation/pkg/console"
	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/events"
	"github.com/crystal-station/gostation/pkg/loc"
	"github.com/crystal-station/gostation/pkg/netmsg"
	"github.com/crystal-station/gostation/pkg/player"
	"golang.org/x/text/language"
)

type fakeLog struct {
	entries []adminlog.Entry
}

func (f *fakeLog) Add(e adminlog.Entry) (adminlog.Entry, error) {
	f.entries = append(f.entries, e)
	return e, nil
}

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Receive(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

func (r *recorder) Closed() bool { return false }

type fixture struct {
	w      *ecs.World
	sys    *System
	log    *fakeLog
	user   ecs.EntityUID
	target ecs.EntityUID
	ran    []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{w: ecs.NewWorld(), log: &fakeLog{}}
	f.sys = NewSystem(f.w, f.log, loc.New(language.AmericanEnglish))
	f.user = f.w.Create("Admin", ecs.Coordinates{})
	f.target = f.w.Create("Bob", ecs.Coordinates{})

	ecs.Subscribe(f.w.Bus, func(ev *GetVerbsEvent) {
		if ev.Target != f.target {
			return
		}
		ev.AddVerb(Verb{Text: "Make Zombie", Category: CategoryAntag, Impact: adminlog.ImpactHigh,
			Act: func() { f.ran = append(f.ran, "zombie") }})
		ev.AddVerb(Verb{Text: "Examine", Act: func() { f.ran = append(f.ran, "examine") }})
		ev.AddVerb(Verb{Text: "Make Pirate", Category: CategoryAntag, Impact: adminlog.ImpactHigh,
			Act: func() { f.ran = append(f.ran, "pirate") }})
		ev.AddVerb(Verb{Text: "Delete", Category: CategoryAdmin})
	})
	return f
}

func TestGetLocalVerbsSorted(t *testing.T) {
	f := newFixture(t)
	got := f.sys.GetLocalVerbs(f.target, f.user)
	var texts []string
	for _, v := range got {
		texts = append(texts, v.Text)
	}
	want := "Examine,Delete,Make Pirate,Make Zombie"
	if strings.Join(texts, ",") != want {
		t.Errorf("order = %v, want %s", texts, want)
	}
	if len(f.sys.GetLocalVerbs(f.user, f.user)) != 0 {
		t.Error("user entity should have no verbs")
	}
}

func TestExecuteVerbLogsImpact(t *testing.T) {
	f := newFixture(t)
	var executed []string
	f.sys.OnExecuted = func(v Verb) { executed = append(executed, v.Text) }

	if !f.sys.InvokeByName(f.user, f.target, "make zombie") {
		t.Fatal("InvokeByName should match case-insensitively")
	}
	if !f.sys.InvokeByName(f.user, f.target, "Examine") {
		t.Fatal("Examine should run")
	}
	if f.sys.InvokeByName(f.user, f.target, "Make Wizard") {
		t.Error("unknown verb should not match")
	}

	if strings.Join(f.ran, ",") != "zombie,examine" {
		t.Errorf("ran = %v", f.ran)
	}
	if len(executed) != 2 {
		t.Errorf("OnExecuted saw %v", executed)
	}
	if len(f.log.entries) != 1 {
		t.Fatalf("admin log entries = %d, want 1", len(f.log.entries))
	}
	e := f.log.entries[0]
	wantMsg := "Admin (1) executed the verb Make Zombie on Bob (2)"
	if e.Message != wantMsg || e.Impact != adminlog.ImpactHigh || e.Type != adminlog.TypeVerb || e.User != "Admin" {
		t.Errorf("entry = %+v", e)
	}
}

func TestExecuteVerbUsesSessionName(t *testing.T) {
	f := newFixture(t)
	s := player.NewManager().NewSession("alice_admin", "")
	ecs.Add(f.w, f.user, &player.Actor{Session: s})
	f.sys.InvokeByName(f.user, f.target, "Make Pirate")
	if len(f.log.entries) != 1 || f.log.entries[0].User != "alice_admin" {
		t.Errorf("entries = %+v", f.log.entries)
	}
}

func TestInfo(t *testing.T) {
	info := Info([]Verb{{Text: "Make Traitor", Category: CategoryAntag,
		Icon: SpriteSpecifier{RSIPath: "/Textures/x.rsi", State: "s"}, Message: "m"}})
	if len(info) != 1 || info[0].Category != "Antag" || info[0].RSIPath != "/Textures/x.rsi" || info[0].State != "s" {
		t.Errorf("info = %+v", info)
	}
}

func TestConsoleCommands(t *testing.T) {
	f := newFixture(t)
	bus := events.NewBus()
	s := player.NewManager().NewSession("Admin", "")
	rec := &recorder{}
	bus.Subscribe(s.ID, rec)

	host := console.NewHost(nil, bus, loc.New(language.AmericanEnglish))
	f.sys.RegisterCommands(host)

	host.ExecuteCommand(s, "listverbs 2")
	host.ExecuteCommand(s, `invokeverb 2 Make Pirate`)
	host.ExecuteCommand(s, "invokeverb 99 Make Pirate")
	host.ExecuteCommand(s, "invokeverb 2")

	var lines []string
	for _, ev := range rec.evs {
		lines = append(lines, ev.Text)
	}
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"Examine", "[Admin] Delete", "[Antag] Make Pirate", `Error: no entity "99"`, "Usage: invokeverb <uid> <verb text>"} {
		if !strings.Contains(joined, want) {
			t.Errorf("output missing %q:\n%s", want, joined)
		}
	}
	if strings.Join(f.ran, ",") != "pirate" {
		t.Errorf("ran = %v", f.ran)
	}
}

func TestNetworkVerbs(t *testing.T) {
	f := newFixture(t)
	bus := events.NewBus()
	d := netmsg.NewDispatcher()
	f.sys.Subscribe(d, bus)

	pm := player.NewManager()
	s := pm.NewSession("Admin", "")
	rec := &recorder{}
	bus.Subscribe(s.ID, rec)

	d.Dispatch(s, &netmsg.MsgGetVerbs{Target: f.target})
	if len(rec.evs) != 0 {
		t.Fatal("detached session should get no verbs")
	}

	pm.Attach(s, f.user)
	d.Dispatch(s, &netmsg.MsgGetVerbs{Target: f.target})
	if len(rec.evs) != 1 || rec.evs[0].Type != events.EvVerbs {
		t.Fatalf("events = %+v", rec.evs)
	}
	if vs := rec.evs[0].Data["verbs"].([]netmsg.VerbInfo); len(vs) != 4 {
		t.Errorf("verbs = %+v", vs)
	}

	d.Dispatch(s, &netmsg.MsgInvokeVerb{Target: f.target, Text: "Make Zombie"})
	if strings.Join(f.ran, ",") != "zombie" {
		t.Errorf("ran = %v", f.ran)
	}
}
