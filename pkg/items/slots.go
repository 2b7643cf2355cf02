package items

import (
	"github.com/crystal-station/gostation/pkg/ecs"
)

// PDA is a personal data assistant with a slot for an ID card.
type PDA struct {
	IDSlot      string
	ContainedID ecs.EntityUID
}

// ItemSlot is one named slot in an ItemSlots container.
type ItemSlot struct {
	Item          ecs.EntityUID
	RequireIDCard bool
}

// ItemSlots is a container of named single-item slots.
type ItemSlots struct {
	Slots map[string]*ItemSlot
}

// ItemSlotsSystem moves items in and out of item slots.
type ItemSlotsSystem struct {
	w *ecs.World
}

// NewItemSlotsSystem creates an item slot system over w.
func NewItemSlotsSystem(w *ecs.World) *ItemSlotsSystem {
	return &ItemSlotsSystem{w: w}
}

// TryInsert puts item into owner's slot. It fails when the slot is missing,
// occupied, or rejects the item. user is recorded for logging only and may be Invalid.
func (s *ItemSlotsSystem) TryInsert(owner ecs.EntityUID, slotID string, item, user ecs.EntityUID) bool {
	slots, ok := ecs.Get[ItemSlots](s.w, owner)
	if !ok {
		return false
	}
	slot, ok := slots.Slots[slotID]
	if !ok || slot.Item.Valid() || !s.w.Exists(item) {
		return false
	}
	if slot.RequireIDCard && !ecs.Has[IDCard](s.w, item) {
		return false
	}

	slot.Item = item
	s.w.SetCoordinates(item, ecs.Coordinates{Parent: owner})

	if pda, ok := ecs.Get[PDA](s.w, owner); ok && pda.IDSlot == slotID {
		pda.ContainedID = item
	}
	return true
}

// TryEject removes and returns the item in owner's slot.
func (s *ItemSlotsSystem) TryEject(owner ecs.EntityUID, slotID string) (ecs.EntityUID, bool) {
	slots, ok := ecs.Get[ItemSlots](s.w, owner)
	if !ok {
		return ecs.Invalid, false
	}
	slot, ok := slots.Slots[slotID]
	if !ok || !slot.Item.Valid() {
		return ecs.Invalid, false
	}
	item := slot.Item
	slot.Item = ecs.Invalid
	s.w.SetCoordinates(item, s.w.Transform(owner).Coordinates)

	if pda, ok := ecs.Get[PDA](s.w, owner); ok && pda.IDSlot == slotID {
		pda.ContainedID = ecs.Invalid
	}
	return item, true
}
