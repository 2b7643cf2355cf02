package items

import (
	"github.com/crystal-station/gostation/pkg/ecs"
)

// Hands lets an entity hold up to Count items.
type Hands struct {
	Count int
	Held  []ecs.EntityUID
}

// Free returns the number of empty hands.
func (h *Hands) Free() int {
	return h.Count - len(h.Held)
}

// HandsSystem picks up and drops held items.
type HandsSystem struct {
	w *ecs.World
}

// NewHandsSystem creates a hands system over w.
func NewHandsSystem(w *ecs.World) *HandsSystem {
	return &HandsSystem{w: w}
}

// PickupOrDrop puts item in a free hand of uid. If there is none, the item is
// dropped at uid's feet. It returns true if the item was picked up.
func (s *HandsSystem) PickupOrDrop(uid, item ecs.EntityUID) bool {
	hands, ok := ecs.Get[Hands](s.w, uid)
	if ok && hands.Free() > 0 {
		hands.Held = append(hands.Held, item)
		s.w.SetCoordinates(item, ecs.Coordinates{Parent: uid})
		return true
	}
	s.w.SetCoordinates(item, s.w.Transform(uid).Coordinates)
	return false
}

// IsHolding reports whether uid holds item.
func (s *HandsSystem) IsHolding(uid, item ecs.EntityUID) bool {
	hands, ok := ecs.Get[Hands](s.w, uid)
	if !ok {
		return false
	}
	for _, h := range hands.Held {
		if h == item {
			return true
		}
	}
	return false
}
