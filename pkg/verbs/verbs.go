// Package verbs collects and runs context-menu verbs. Systems add verbs to a
// GetVerbsEvent raised on the local bus; the verb system sorts, runs and
// audits them.
package verbs

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/crystal-station/gostation/pkg/adminlog"
	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/loc"
	"github.com/crystal-station/gostation/pkg/netmsg"
	"github.com/crystal-station/gostation/pkg/player"
)

// VerbCategory groups verbs in the context menu.
type VerbCategory string

const (
	CategoryNone   VerbCategory = ""
	CategoryAdmin  VerbCategory = "Admin"
	CategoryAntag  VerbCategory = "Antag"
	CategoryDebug  VerbCategory = "Debug"
	CategoryTricks VerbCategory = "Tricks"
)

// SpriteSpecifier names one state of an RSI sprite sheet.
type SpriteSpecifier struct {
	RSIPath string
	State   string
}

// Verb is one context-menu action. A zero Impact means the verb is not
// written to the admin log.
type Verb struct {
	Text     string
	Category VerbCategory
	Icon     SpriteSpecifier
	Act      func()
	Impact   adminlog.Impact
	Message  string
}

// GetVerbsEvent is raised to collect the verbs user may run on target.
type GetVerbsEvent struct {
	User   ecs.EntityUID
	Target ecs.EntityUID
	Verbs  []Verb
}

// AddVerb appends v.
func (e *GetVerbsEvent) AddVerb(v Verb) {
	e.Verbs = append(e.Verbs, v)
}

// AdminLogger persists admin log entries. *adminlog.Store satisfies it.
type AdminLogger interface {
	Add(e adminlog.Entry) (adminlog.Entry, error)
}

// System gathers and executes verbs.
type System struct {
	w   *ecs.World
	log AdminLogger
	loc *loc.Catalog

	// OnExecuted, if set, runs after every executed verb.
	OnExecuted func(v Verb)
}

// NewSystem creates a verb system. logger may be nil.
func NewSystem(w *ecs.World, logger AdminLogger, catalog *loc.Catalog) *System {
	return &System{w: w, log: logger, loc: catalog}
}

// GetLocalVerbs raises GetVerbsEvent and returns the collected verbs sorted
// by category, then text.
func (s *System) GetLocalVerbs(target, user ecs.EntityUID) []Verb {
	ev := &GetVerbsEvent{User: user, Target: target}
	ecs.Raise(s.w.Bus, ev)
	sort.SliceStable(ev.Verbs, func(i, j int) bool {
		a, b := ev.Verbs[i], ev.Verbs[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Text < b.Text
	})
	return ev.Verbs
}

// ExecuteVerb runs v on behalf of user and audits it when v has an impact.
func (s *System) ExecuteVerb(v Verb, user, target ecs.EntityUID) {
	if v.Act != nil {
		v.Act()
	}
	if s.OnExecuted != nil {
		s.OnExecuted(v)
	}
	if v.Impact == adminlog.ImpactNone {
		return
	}
	msg := s.loc.GetString("admin-verb-executed",
		"user", s.describe(user), "verb", v.Text, "target", s.describe(target))
	log.Printf("[verbs] %s", msg)
	if s.log == nil {
		return
	}
	if _, err := s.log.Add(adminlog.Entry{
		Type:    adminlog.TypeVerb,
		Impact:  v.Impact,
		User:    s.userName(user),
		Message: msg,
	}); err != nil {
		log.Printf("[verbs] admin log: %v", err)
	}
}

// InvokeByName finds a verb on target by its text, case-insensitively, and
// executes it. It returns false if no verb matched.
func (s *System) InvokeByName(user, target ecs.EntityUID, text string) bool {
	for _, v := range s.GetLocalVerbs(target, user) {
		if strings.EqualFold(v.Text, text) {
			s.ExecuteVerb(v, user, target)
			return true
		}
	}
	return false
}

// Info converts verbs into their client view.
func Info(vs []Verb) []netmsg.VerbInfo {
	out := make([]netmsg.VerbInfo, len(vs))
	for i, v := range vs {
		out[i] = netmsg.VerbInfo{
			Text:     v.Text,
			Category: string(v.Category),
			RSIPath:  v.Icon.RSIPath,
			State:    v.Icon.State,
			Message:  v.Message,
		}
	}
	return out
}

func (s *System) describe(uid ecs.EntityUID) string {
	return fmt.Sprintf("%s (%s)", s.w.MetaData(uid).Name, uid)
}

// userName prefers the player's session name for log filtering.
func (s *System) userName(uid ecs.EntityUID) string {
	if a, ok := ecs.Get[player.Actor](s.w, uid); ok && a.Session != nil {
		return a.Session.Name
	}
	return s.w.MetaData(uid).Name
}
