package items

import (
	"log"

	"github.com/crystal-station/gostation/pkg/ecs"
)

// Clothing lists the inventory slots an item may be worn in.
type Clothing struct {
	Slots []string
}

// Inventory maps slot names to the entity worn there. A slot that exists
// but is empty maps to ecs.Invalid.
type Inventory struct {
	Slots map[string]ecs.EntityUID
}

// InventorySystem equips and queries worn items.
type InventorySystem struct {
	w *ecs.World
}

// NewInventorySystem creates an inventory system over w.
func NewInventorySystem(w *ecs.World) *InventorySystem {
	return &InventorySystem{w: w}
}

// TryGetSlotEntity returns the entity worn in uid's slot, if any.
func (s *InventorySystem) TryGetSlotEntity(uid ecs.EntityUID, slot string) (ecs.EntityUID, bool) {
	inv, ok := ecs.Get[Inventory](s.w, uid)
	if !ok {
		return ecs.Invalid, false
	}
	item, ok := inv.Slots[slot]
	if !ok || !item.Valid() || !s.w.Exists(item) {
		return ecs.Invalid, false
	}
	return item, true
}

// TryEquip puts item into uid's slot. Without force, the item must be
// Clothing that lists the slot. silent suppresses the equip notice.
func (s *InventorySystem) TryEquip(uid, item ecs.EntityUID, slot string, silent, force bool) bool {
	inv, ok := ecs.Get[Inventory](s.w, uid)
	if !ok {
		return false
	}
	current, ok := inv.Slots[slot]
	if !ok || current.Valid() {
		return false
	}
	if !force && !fitsSlot(s.w, item, slot) {
		return false
	}
	inv.Slots[slot] = item
	s.w.SetCoordinates(item, ecs.Coordinates{Parent: uid})
	if !silent {
		log.Printf("[inventory] %s equipped %s in %s", s.w.MetaData(uid).Name, s.w.MetaData(item).Name, slot)
	}
	return true
}

// TryUnequip empties uid's slot and returns what was in it.
func (s *InventorySystem) TryUnequip(uid ecs.EntityUID, slot string) (ecs.EntityUID, bool) {
	inv, ok := ecs.Get[Inventory](s.w, uid)
	if !ok {
		return ecs.Invalid, false
	}
	item, ok := inv.Slots[slot]
	if !ok || !item.Valid() {
		return ecs.Invalid, false
	}
	inv.Slots[slot] = ecs.Invalid
	s.w.SetCoordinates(item, s.w.Transform(uid).Coordinates)
	return item, true
}

func fitsSlot(w *ecs.World, item ecs.EntityUID, slot string) bool {
	c, ok := ecs.Get[Clothing](w, item)
	if !ok {
		return false
	}
	for _, s := range c.Slots {
		if s == slot {
			return true
		}
	}
	return false
}
