package ticker

import (
	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/prototype"
	"gopkg.in/yaml.v3"
)

// MobState tracks whether a mob is alive.
type MobState struct {
	Dead bool
}

// Ghost marks an observer entity.
type Ghost struct {
	CanReturn bool
}

// AdminGhost marks an observer spawned by aghost.
type AdminGhost struct{}

// RegisterComponents binds the mob and ghost prototype components.
func RegisterComponents(pm *prototype.Manager) {
	pm.RegisterComponent("mobState", func(w *ecs.World, uid ecs.EntityUID, _ *yaml.Node) error {
		ecs.Add(w, uid, &MobState{})
		return nil
	})
	pm.RegisterComponent("ghost", func(w *ecs.World, uid ecs.EntityUID, node *yaml.Node) error {
		var raw struct {
			CanReturn bool `yaml:"canReturn"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		ecs.Add(w, uid, &Ghost{CanReturn: raw.CanReturn})
		return nil
	})
	pm.RegisterComponent("adminGhost", func(w *ecs.World, uid ecs.EntityUID, _ *yaml.Node) error {
		ecs.Add(w, uid, &AdminGhost{})
		return nil
	})
}
