package administration

import (
	"testing"

	"github.com/crystal-station/gostation/pkg/adminlog"
	"github.com/crystal-station/gostation/pkg/adminmgr"
	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/loc"
	"github.com/crystal-station/gostation/pkg/mind"
	"github.com/crystal-station/gostation/pkg/player"
	"github.com/crystal-station/gostation/pkg/verbs"
	"golang.org/x/text/language"
)

type fakeAdmins map[*player.Session]adminmgr.AdminFlags

func (f fakeAdmins) HasAdminFlag(s *player.Session, flag adminmgr.AdminFlags) bool {
	return f[s].Has(flag)
}

// fakeRules records every rule call.
type fakeRules struct {
	calls []string
	twins []ecs.EntityUID
	zombs []ecs.EntityUID
}

func (f *fakeRules) MakeTraitor(s *player.Session) bool {
	f.calls = append(f.calls, "traitor:"+s.Name)
	return true
}

func (f *fakeRules) MakeLoneNukie(m *mind.Mind) bool {
	f.calls = append(f.calls, "nukie:"+m.CharacterName)
	return true
}

func (f *fakeRules) MakePirate(m *mind.Mind) bool {
	f.calls = append(f.calls, "pirate:"+m.CharacterName)
	return true
}

func (f *fakeRules) ZombifyEntity(uid ecs.EntityUID) bool {
	f.calls = append(f.calls, "zombie")
	f.zombs = append(f.zombs, uid)
	return true
}

func (f *fakeRules) MakeTwin(target ecs.EntityUID) (ecs.EntityUID, bool) {
	f.calls = append(f.calls, "twin")
	f.twins = append(f.twins, target)
	return ecs.Invalid, true
}

type fixture struct {
	w       *ecs.World
	players *player.Manager
	minds   *mind.System
	admins  fakeAdmins
	rules   *fakeRules
	sys     *AdminVerbSystem

	admin       *player.Session
	adminEntity ecs.EntityUID
	victim      *player.Session
	victimMind  *mind.Mind
	victimBody  ecs.EntityUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		w:       ecs.NewWorld(),
		players: player.NewManager(),
		admins:  fakeAdmins{},
		rules:   &fakeRules{},
	}
	f.minds = mind.NewSystem(f.w)
	f.sys = NewAdminVerbSystem(f.w, f.admins, AntagRules{
		Traitor:  f.rules,
		Nukeops:  f.rules,
		Pirates:  f.rules,
		Zombify:  f.rules,
		EvilTwin: f.rules,
	}, loc.New(language.AmericanEnglish))
	f.sys.Initialize()
	t.Cleanup(f.sys.Shutdown)

	f.admin = f.players.NewSession("Admin", "")
	f.adminEntity = f.w.Create("Admin", ecs.Coordinates{})
	ecs.Add(f.w, f.adminEntity, &player.Actor{Session: f.admin})
	f.admins[f.admin] = adminmgr.FlagAdmin | adminmgr.FlagFun

	f.victim = f.players.NewSession("Victim", "")
	f.victimBody = f.w.Create("Victim", ecs.Coordinates{})
	f.victimMind = f.minds.CreateMind(f.victim, "Victim")
	f.minds.TransferTo(f.victimMind, f.victimBody)
	return f
}

func (f *fixture) verbs(user, target ecs.EntityUID) []verbs.Verb {
	ev := &verbs.GetVerbsEvent{User: user, Target: target}
	ecs.Raise(f.w.Bus, ev)
	return ev.Verbs
}

func find(vs []verbs.Verb, text string) (verbs.Verb, bool) {
	for _, v := range vs {
		if v.Text == text {
			return v, true
		}
	}
	return verbs.Verb{}, false
}

func TestAntagVerbsOffered(t *testing.T) {
	f := newFixture(t)
	vs := f.verbs(f.adminEntity, f.victimBody)
	if len(vs) != 5 {
		t.Fatalf("got %d verbs, want 5", len(vs))
	}

	want := []struct {
		text, rsi, state, msg string
	}{
		{"Make Traitor", "/Textures/Structures/Wallmounts/posters.rsi", "poster5_contraband", "Make the target into a traitor."},
		{"Make EvilTwin", "/Textures/Structures/Wallmounts/posters.rsi", "poster3_legit", "Make the target into an evil twin."},
		{"Make Zombie", "/Textures/Structures/Wallmounts/signs.rsi", "bio", "Zombifies someone immediately."},
		{"Make nuclear operative", "/Textures/Structures/Wallmounts/signs.rsi", "radiation", "Make target a into lone Nuclear Operative."},
		{"Make Pirate", "/Textures/Clothing/Head/Hats/pirate.rsi", "icon", "Make the target into a pirate. Note this doesn't configure the game rule."},
	}
	for _, w := range want {
		v, ok := find(vs, w.text)
		if !ok {
			t.Errorf("verb %q missing", w.text)
			continue
		}
		if v.Category != verbs.CategoryAntag || v.Impact != adminlog.ImpactHigh {
			t.Errorf("%s: category=%q impact=%v", w.text, v.Category, v.Impact)
		}
		if v.Icon.RSIPath != w.rsi || v.Icon.State != w.state {
			t.Errorf("%s: icon = %+v", w.text, v.Icon)
		}
		if v.Message != w.msg {
			t.Errorf("%s: message = %q", w.text, v.Message)
		}
	}
}

func TestAntagVerbsGating(t *testing.T) {
	f := newFixture(t)

	// No Actor on the user.
	npc := f.w.Create("npc", ecs.Coordinates{})
	if n := len(f.verbs(npc, f.victimBody)); n != 0 {
		t.Errorf("non-player user got %d verbs", n)
	}

	// Player without FUN.
	f.admins[f.admin] = adminmgr.FlagAdmin
	if n := len(f.verbs(f.adminEntity, f.victimBody)); n != 0 {
		t.Errorf("admin without FUN got %d verbs", n)
	}

	// HOST implies FUN.
	f.admins[f.admin] = adminmgr.FlagHost
	if n := len(f.verbs(f.adminEntity, f.victimBody)); n != 5 {
		t.Errorf("host got %d verbs, want 5", n)
	}

	// Target without a mind container.
	rock := f.w.Create("rock", ecs.Coordinates{})
	if n := len(f.verbs(f.adminEntity, rock)); n != 0 {
		t.Errorf("mindless target got %d verbs", n)
	}

	// Empty container still gets verbs.
	empty := f.w.Create("empty", ecs.Coordinates{})
	ecs.Add(f.w, empty, &mind.Container{})
	if n := len(f.verbs(f.adminEntity, empty)); n != 5 {
		t.Errorf("empty container got %d verbs, want 5", n)
	}
}

func TestAntagVerbsAct(t *testing.T) {
	f := newFixture(t)
	vs := f.verbs(f.adminEntity, f.victimBody)
	for _, text := range []string{"Make Traitor", "Make EvilTwin", "Make Zombie", "Make nuclear operative", "Make Pirate"} {
		v, _ := find(vs, text)
		v.Act()
	}
	want := []string{"traitor:Victim", "twin", "zombie", "nukie:Victim", "pirate:Victim"}
	if len(f.rules.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", f.rules.calls, want)
	}
	for i := range want {
		if f.rules.calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, f.rules.calls[i], want[i])
		}
	}
	if f.rules.twins[0] != f.victimBody || f.rules.zombs[0] != f.victimBody {
		t.Errorf("twin/zombie targets = %v %v", f.rules.twins, f.rules.zombs)
	}
}

func TestAntagVerbsReadMindAtActTime(t *testing.T) {
	f := newFixture(t)
	vs := f.verbs(f.adminEntity, f.victimBody)

	// The player leaves the body after the menu opened.
	f.minds.TransferTo(f.victimMind, ecs.Invalid)
	for _, v := range vs {
		v.Act()
	}
	if len(f.rules.calls) != 1 || f.rules.calls[0] != "zombie" {
		t.Errorf("calls = %v, want only the zombie verb", f.rules.calls)
	}
}

func TestAntagVerbsNeedSession(t *testing.T) {
	f := newFixture(t)
	f.minds.SetSession(f.victimMind, nil)
	for _, v := range f.verbs(f.adminEntity, f.victimBody) {
		v.Act()
	}
	if len(f.rules.calls) != 1 || f.rules.calls[0] != "zombie" {
		t.Errorf("calls = %v, want only the zombie verb", f.rules.calls)
	}
}

func TestEvilTwinUsesCurrentEntity(t *testing.T) {
	f := newFixture(t)
	ghost := f.w.Create("ghost", ecs.Coordinates{})
	f.minds.Visit(f.victimMind, ghost)

	v, _ := find(f.verbs(f.adminEntity, f.victimBody), "Make EvilTwin")
	v.Act()
	if len(f.rules.twins) != 1 || f.rules.twins[0] != ghost {
		t.Errorf("twin target = %v, want visited entity %v", f.rules.twins, ghost)
	}
}

func TestShutdownStopsVerbs(t *testing.T) {
	f := newFixture(t)
	f.sys.Shutdown()
	if n := len(f.verbs(f.adminEntity, f.victimBody)); n != 0 {
		t.Errorf("got %d verbs after shutdown", n)
	}
}
