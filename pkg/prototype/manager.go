// Package prototype loads YAML prototypes: entity templates used to spawn
// entities, and the access levels an ID card can carry.
package prototype

import (
	"bytes"
	_ "embed"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/crystal-station/gostation/pkg/ecs"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yml
var defaultPrototypes []byte

// Prototype kinds recognised in YAML files.
const (
	KindEntity      = "entity"
	KindAccessLevel = "accessLevel"
)

// EntityPrototype is a template for spawning an entity.
type EntityPrototype struct {
	ID         string
	Name       string
	Components map[string]yaml.Node
}

// AccessLevelPrototype names one access tag.
type AccessLevelPrototype struct {
	ID   string
	Name string
}

// ComponentFactory adds the component described by node to uid.
type ComponentFactory func(w *ecs.World, uid ecs.EntityUID, node *yaml.Node) error

type rawPrototype struct {
	Type       string               `yaml:"type"`
	ID         string               `yaml:"id"`
	Name       string               `yaml:"name"`
	Components map[string]yaml.Node `yaml:"components"`
}

// prototypeSet is one immutable snapshot of loaded prototypes.
type prototypeSet struct {
	entities    map[string]*EntityPrototype
	access      []AccessLevelPrototype
	accessIndex map[string]int
}

func newPrototypeSet() *prototypeSet {
	return &prototypeSet{
		entities:    make(map[string]*EntityPrototype),
		accessIndex: make(map[string]int),
	}
}

// Manager holds the loaded prototypes and the component factories used to
// build entities from them. It implements ecs.Spawner.
type Manager struct {
	mu        sync.RWMutex
	set       *prototypeSet
	factories map[string]ComponentFactory
	dir       string
}

// NewManager creates a manager preloaded with the built-in prototypes.
func NewManager() *Manager {
	m := &Manager{
		set:       newPrototypeSet(),
		factories: make(map[string]ComponentFactory),
	}
	if err := m.parseInto(m.set, "defaults.yml", defaultPrototypes); err != nil {
		panic(fmt.Sprintf("prototype: built-in prototypes: %v", err))
	}
	return m
}

// RegisterComponent binds a YAML component name to a factory.
func (m *Manager) RegisterComponent(name string, f ComponentFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factories[name] = f
}

// LoadDir loads every .yml/.yaml file in dir on top of the built-in prototypes.
// The new set replaces the old one only if every file parses.
func (m *Manager) LoadDir(dir string) error {
	set := newPrototypeSet()
	if err := m.parseInto(set, "defaults.yml", defaultPrototypes); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("prototype: read dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yml" || ext == ".yaml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("prototype: read %s: %w", name, err)
		}
		if err := m.parseInto(set, name, data); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.set = set
	m.dir = dir
	m.mu.Unlock()

	log.Printf("[prototype] loaded %d entity prototypes, %d access levels from %s (%d files)",
		len(set.entities), len(set.access), dir, len(names))
	return nil
}

// LoadBytes parses one YAML document and merges it into the current set.
func (m *Manager) LoadBytes(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.set.clone()
	if err := m.parseInto(set, name, data); err != nil {
		return err
	}
	m.set = set
	return nil
}

func (s *prototypeSet) clone() *prototypeSet {
	out := newPrototypeSet()
	for k, v := range s.entities {
		out.entities[k] = v
	}
	out.access = append(out.access, s.access...)
	for k, v := range s.accessIndex {
		out.accessIndex[k] = v
	}
	return out
}

func (m *Manager) parseInto(set *prototypeSet, name string, data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var raws []rawPrototype
	if err := yaml.Unmarshal(data, &raws); err != nil {
		return fmt.Errorf("prototype: parse %s: %w", name, err)
	}
	for i, r := range raws {
		if r.ID == "" {
			return fmt.Errorf("prototype: %s: entry %d has no id", name, i)
		}
		switch r.Type {
		case KindEntity:
			set.entities[r.ID] = &EntityPrototype{ID: r.ID, Name: r.Name, Components: r.Components}
		case KindAccessLevel:
			lvl := AccessLevelPrototype{ID: r.ID, Name: r.Name}
			if idx, ok := set.accessIndex[r.ID]; ok {
				set.access[idx] = lvl
			} else {
				set.accessIndex[r.ID] = len(set.access)
				set.access = append(set.access, lvl)
			}
		default:
			return fmt.Errorf("prototype: %s: %s has unknown type %q", name, r.ID, r.Type)
		}
	}
	return nil
}

// Dir returns the directory last loaded with LoadDir.
func (m *Manager) Dir() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dir
}

// Entity returns the entity prototype with the given ID.
func (m *Manager) Entity(id string) (*EntityPrototype, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.set.entities[id]
	return p, ok
}

// EntityIDs returns all entity prototype IDs, sorted.
func (m *Manager) EntityIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.set.entities))
	for id := range m.set.entities {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// EnumerateAccessLevels returns every access level in load order.
func (m *Manager) EnumerateAccessLevels() []AccessLevelPrototype {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AccessLevelPrototype(nil), m.set.access...)
}

// AccessLevelIDs returns the ID of every access level in load order.
func (m *Manager) AccessLevelIDs() []string {
	levels := m.EnumerateAccessLevels()
	ids := make([]string, len(levels))
	for i, l := range levels {
		ids[i] = l.ID
	}
	return ids
}

// Populate implements ecs.Spawner. Components are built in name order.
func (m *Manager) Populate(w *ecs.World, uid ecs.EntityUID, protoID string) error {
	m.mu.RLock()
	proto, ok := m.set.entities[protoID]
	factories := m.factories
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown prototype %q", protoID)
	}

	if proto.Name != "" {
		w.SetName(uid, proto.Name)
	}

	names := make([]string, 0, len(proto.Components))
	for name := range proto.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, ok := factories[name]
		if !ok {
			return fmt.Errorf("prototype %s: no factory for component %q", protoID, name)
		}
		node := proto.Components[name]
		if err := f(w, uid, &node); err != nil {
			return fmt.Errorf("prototype %s: component %s: %w", protoID, name, err)
		}
	}
	return nil
}

var _ ecs.Spawner = (*Manager)(nil)
