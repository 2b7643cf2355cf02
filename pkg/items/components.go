package items

import (
	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/prototype"
	"gopkg.in/yaml.v3"
)

// RegisterComponents binds the item component names used in prototype YAML.
func RegisterComponents(pm *prototype.Manager) {
	pm.RegisterComponent("access", func(w *ecs.World, uid ecs.EntityUID, node *yaml.Node) error {
		var raw struct {
			Tags []string `yaml:"tags"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		ecs.Add(w, uid, &Access{Tags: append([]string(nil), raw.Tags...)})
		return nil
	})

	pm.RegisterComponent("idCard", func(w *ecs.World, uid ecs.EntityUID, node *yaml.Node) error {
		var raw struct {
			FullName string `yaml:"fullName"`
			JobTitle string `yaml:"jobTitle"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		ecs.Add(w, uid, &IDCard{FullName: raw.FullName, JobTitle: raw.JobTitle})
		return nil
	})

	pm.RegisterComponent("clothing", func(w *ecs.World, uid ecs.EntityUID, node *yaml.Node) error {
		var raw struct {
			Slots []string `yaml:"slots"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		ecs.Add(w, uid, &Clothing{Slots: append([]string(nil), raw.Slots...)})
		return nil
	})

	pm.RegisterComponent("pda", func(w *ecs.World, uid ecs.EntityUID, node *yaml.Node) error {
		var raw struct {
			IDSlot string `yaml:"idSlot"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		ecs.Add(w, uid, &PDA{IDSlot: raw.IDSlot})
		return nil
	})

	pm.RegisterComponent("itemSlots", func(w *ecs.World, uid ecs.EntityUID, node *yaml.Node) error {
		var raw struct {
			Slots map[string]struct {
				RequireIDCard bool `yaml:"requireIdCard"`
			} `yaml:"slots"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		slots := &ItemSlots{Slots: make(map[string]*ItemSlot, len(raw.Slots))}
		for id, s := range raw.Slots {
			slots.Slots[id] = &ItemSlot{RequireIDCard: s.RequireIDCard}
		}
		ecs.Add(w, uid, slots)
		return nil
	})

	pm.RegisterComponent("inventory", func(w *ecs.World, uid ecs.EntityUID, node *yaml.Node) error {
		var raw struct {
			Slots []string `yaml:"slots"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		inv := &Inventory{Slots: make(map[string]ecs.EntityUID, len(raw.Slots))}
		for _, s := range raw.Slots {
			inv.Slots[s] = ecs.Invalid
		}
		ecs.Add(w, uid, inv)
		return nil
	})

	pm.RegisterComponent("hands", func(w *ecs.World, uid ecs.EntityUID, node *yaml.Node) error {
		var raw struct {
			Count int `yaml:"count"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		if raw.Count <= 0 {
			raw.Count = 2
		}
		ecs.Add(w, uid, &Hands{Count: raw.Count})
		return nil
	})
}
