// Package items holds the item-level components a player carries around:
// access tags, ID cards, PDAs, item slots, inventory slots and hands.
package items

import (
	"sort"

	"github.com/crystal-station/gostation/pkg/ecs"
)

// Access grants the holder a set of access tags.
type Access struct {
	Tags []string
}

// HasTag reports whether tag is in the set.
func (a *Access) HasTag(tag string) bool {
	for _, t := range a.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// IDCard names the person an ID belongs to.
type IDCard struct {
	FullName string
	JobTitle string
}

// AccessSystem edits access tags on entities.
type AccessSystem struct {
	w *ecs.World
}

// NewAccessSystem creates an access system over w.
func NewAccessSystem(w *ecs.World) *AccessSystem {
	return &AccessSystem{w: w}
}

// TrySetTags replaces uid's access tags with a sorted, de-duplicated copy of tags.
// It returns false if uid has no Access component.
func (s *AccessSystem) TrySetTags(uid ecs.EntityUID, tags []string) bool {
	acc, ok := ecs.Get[Access](s.w, uid)
	if !ok {
		return false
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	acc.Tags = out
	return true
}
