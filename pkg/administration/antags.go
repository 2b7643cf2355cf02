// Package administration provides admin-only verbs.
package administration

import (
	"github.com/crystal-station/gostation/pkg/adminlog"
	"github.com/crystal-station/gostation/pkg/adminmgr"
	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/loc"
	"github.com/crystal-station/gostation/pkg/mind"
	"github.com/crystal-station/gostation/pkg/player"
	"github.com/crystal-station/gostation/pkg/verbs"
)

// AdminManager reports admin privileges. *adminmgr.Manager satisfies it.
type AdminManager interface {
	HasAdminFlag(s *player.Session, flag adminmgr.AdminFlags) bool
}

// TraitorRule makes traitors.
type TraitorRule interface {
	MakeTraitor(s *player.Session) bool
}

// NukeopsRule makes lone nuclear operatives.
type NukeopsRule interface {
	MakeLoneNukie(m *mind.Mind) bool
}

// PiratesRule makes pirates.
type PiratesRule interface {
	MakePirate(m *mind.Mind) bool
}

// ZombifySystem zombifies entities.
type ZombifySystem interface {
	ZombifyEntity(uid ecs.EntityUID) bool
}

// EvilTwinSystem spawns evil twins.
type EvilTwinSystem interface {
	MakeTwin(target ecs.EntityUID) (ecs.EntityUID, bool)
}

// AntagRules bundles the rule collaborators used by the antag verbs.
type AntagRules struct {
	Traitor  TraitorRule
	Nukeops  NukeopsRule
	Pirates  PiratesRule
	Zombify  ZombifySystem
	EvilTwin EvilTwinSystem
}

// Antag verb icons.
var (
	iconTraitor  = verbs.SpriteSpecifier{RSIPath: "/Textures/Structures/Wallmounts/posters.rsi", State: "poster5_contraband"}
	iconEvilTwin = verbs.SpriteSpecifier{RSIPath: "/Textures/Structures/Wallmounts/posters.rsi", State: "poster3_legit"}
	iconZombie   = verbs.SpriteSpecifier{RSIPath: "/Textures/Structures/Wallmounts/signs.rsi", State: "bio"}
	iconNukeops  = verbs.SpriteSpecifier{RSIPath: "/Textures/Structures/Wallmounts/signs.rsi", State: "radiation"}
	iconPirate   = verbs.SpriteSpecifier{RSIPath: "/Textures/Clothing/Head/Hats/pirate.rsi", State: "icon"}
)

// AdminVerbSystem offers antagonist verbs to admins holding FUN.
type AdminVerbSystem struct {
	w      *ecs.World
	admins AdminManager
	rules  AntagRules
	loc    *loc.Catalog

	unsub func()
}

// NewAdminVerbSystem creates the system. Call Initialize to start offering verbs.
func NewAdminVerbSystem(w *ecs.World, admins AdminManager, rules AntagRules, catalog *loc.Catalog) *AdminVerbSystem {
	return &AdminVerbSystem{w: w, admins: admins, rules: rules, loc: catalog}
}

// Initialize subscribes to GetVerbsEvent.
func (s *AdminVerbSystem) Initialize() {
	s.unsub = ecs.Subscribe(s.w.Bus, s.AddAntagVerbs)
}

// Shutdown stops offering verbs.
func (s *AdminVerbSystem) Shutdown() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}

// AddAntagVerbs adds the five antag verbs when the user is a player with
// FUN and the target can hold a mind. The verbs read the target's mind when
// run, not when offered.
func (s *AdminVerbSystem) AddAntagVerbs(args *verbs.GetVerbsEvent) {
	actor, ok := ecs.Get[player.Actor](s.w, args.User)
	if !ok {
		return
	}
	if !s.admins.HasAdminFlag(actor.Session, adminmgr.FlagFun) {
		return
	}
	targetMind, ok := ecs.Get[mind.Container](s.w, args.Target)
	if !ok || targetMind == nil {
		return
	}

	args.AddVerb(verbs.Verb{
		Text:     "Make Traitor",
		Category: verbs.CategoryAntag,
		Icon:     iconTraitor,
		Act: func() {
			if targetMind.Mind == nil || targetMind.Mind.Session == nil {
				return
			}
			s.rules.Traitor.MakeTraitor(targetMind.Mind.Session)
		},
		Impact:  adminlog.ImpactHigh,
		Message: s.loc.GetString("admin-verb-make-traitor"),
	})

	args.AddVerb(verbs.Verb{
		Text:     "Make EvilTwin",
		Category: verbs.CategoryAntag,
		Icon:     iconEvilTwin,
		Act: func() {
			m := targetMind.Mind
			if m == nil || m.Session == nil {
				return
			}
			current, ok := m.CurrentEntity()
			if !ok {
				return
			}
			s.rules.EvilTwin.MakeTwin(current)
		},
		Impact:  adminlog.ImpactHigh,
		Message: s.loc.GetString("admin-verb-make-eviltwin"),
	})

	target := args.Target
	args.AddVerb(verbs.Verb{
		Text:     "Make Zombie",
		Category: verbs.CategoryAntag,
		Icon:     iconZombie,
		Act: func() {
			s.rules.Zombify.ZombifyEntity(target)
		},
		Impact:  adminlog.ImpactHigh,
		Message: s.loc.GetString("admin-verb-make-zombie"),
	})

	args.AddVerb(verbs.Verb{
		Text:     "Make nuclear operative",
		Category: verbs.CategoryAntag,
		Icon:     iconNukeops,
		Act: func() {
			if targetMind.Mind == nil || targetMind.Mind.Session == nil {
				return
			}
			s.rules.Nukeops.MakeLoneNukie(targetMind.Mind)
		},
		Impact:  adminlog.ImpactHigh,
		Message: s.loc.GetString("admin-verb-make-nuclear-operative"),
	})

	args.AddVerb(verbs.Verb{
		Text:     "Make Pirate",
		Category: verbs.CategoryAntag,
		Icon:     iconPirate,
		Act: func() {
			if targetMind.Mind == nil || targetMind.Mind.Session == nil {
				return
			}
			s.rules.Pirates.MakePirate(targetMind.Mind)
		},
		Impact:  adminlog.ImpactHigh,
		Message: s.loc.GetString("admin-verb-make-pirate"),
	})
}
