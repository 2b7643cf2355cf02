package ecs

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// EntityUID identifies an entity within a World. Zero is never assigned.
type EntityUID int64

// Invalid is the zero EntityUID.
const Invalid EntityUID = 0

// String formats the UID the way admin tooling prints it.
func (u EntityUID) String() string {
	return fmt.Sprintf("%d", int64(u))
}

// Valid reports whether u could refer to an entity.
func (u EntityUID) Valid() bool {
	return u > 0
}

// Coordinates locate an entity relative to a parent grid or map.
type Coordinates struct {
	Parent EntityUID `json:"parent"`
	X      float64   `json:"x"`
	Y      float64   `json:"y"`
}

// MetaData holds the name and originating prototype of an entity.
type MetaData struct {
	Name      string
	Prototype string
}

// Transform holds an entity's position.
type Transform struct {
	Coordinates Coordinates
}

// Entity is a single entity and its components.
type Entity struct {
	UID       EntityUID
	Meta      MetaData
	Transform Transform
	comps     map[reflect.Type]any
}

// Spawner fills a freshly created entity from a named prototype.
type Spawner interface {
	Populate(w *World, uid EntityUID, protoID string) error
}

// ErrUnknownEntity is returned when an operation names an entity that does not exist.
var ErrUnknownEntity = errors.New("ecs: unknown entity")

// World is the in-memory entity store. It is not safe for concurrent use;
// callers serialise access through the game lock.
type World struct {
	Entities map[EntityUID]*Entity
	Bus      *EventBus

	next    EntityUID
	spawner Spawner
}

// NewWorld creates an empty world with its own local event bus.
func NewWorld() *World {
	return &World{
		Entities: make(map[EntityUID]*Entity),
		Bus:      NewEventBus(),
		next:     1,
	}
}

// SetSpawner installs the prototype-backed spawner used by Spawn.
func (w *World) SetSpawner(s Spawner) {
	w.spawner = s
}

// Create allocates a bare entity with the given name.
func (w *World) Create(name string, coords Coordinates) EntityUID {
	uid := w.next
	w.next++
	w.Entities[uid] = &Entity{
		UID:       uid,
		Meta:      MetaData{Name: name},
		Transform: Transform{Coordinates: coords},
		comps:     make(map[reflect.Type]any),
	}
	return uid
}

// Spawn creates an entity from a prototype at coords.
func (w *World) Spawn(protoID string, coords Coordinates) (EntityUID, error) {
	if w.spawner == nil {
		return Invalid, fmt.Errorf("ecs: spawn %s: no spawner installed", protoID)
	}
	uid := w.Create(protoID, coords)
	w.Entities[uid].Meta.Prototype = protoID
	if err := w.spawner.Populate(w, uid, protoID); err != nil {
		delete(w.Entities, uid)
		return Invalid, fmt.Errorf("ecs: spawn %s: %w", protoID, err)
	}
	return uid, nil
}

// Delete removes an entity and all its components.
func (w *World) Delete(uid EntityUID) {
	delete(w.Entities, uid)
}

// Exists reports whether uid refers to a live entity.
func (w *World) Exists(uid EntityUID) bool {
	_, ok := w.Entities[uid]
	return ok
}

// MetaData returns the metadata of uid, or a zero value if it does not exist.
func (w *World) MetaData(uid EntityUID) MetaData {
	if e, ok := w.Entities[uid]; ok {
		return e.Meta
	}
	return MetaData{}
}

// SetName renames an entity.
func (w *World) SetName(uid EntityUID, name string) {
	if e, ok := w.Entities[uid]; ok {
		e.Meta.Name = name
	}
}

// Transform returns the transform of uid, or a zero value if it does not exist.
func (w *World) Transform(uid EntityUID) Transform {
	if e, ok := w.Entities[uid]; ok {
		return e.Transform
	}
	return Transform{}
}

// SetCoordinates moves an entity.
func (w *World) SetCoordinates(uid EntityUID, c Coordinates) {
	if e, ok := w.Entities[uid]; ok {
		e.Transform.Coordinates = c
	}
}

// Add attaches component c to uid, replacing any existing component of the same type.
func Add[T any](w *World, uid EntityUID, c *T) *T {
	e, ok := w.Entities[uid]
	if !ok {
		return nil
	}
	e.comps[reflect.TypeFor[T]()] = c
	return c
}

// Get returns the component of type T on uid.
func Get[T any](w *World, uid EntityUID) (*T, bool) {
	e, ok := w.Entities[uid]
	if !ok {
		return nil, false
	}
	c, ok := e.comps[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	return c.(*T), true
}

// Has reports whether uid carries a component of type T.
func Has[T any](w *World, uid EntityUID) bool {
	_, ok := Get[T](w, uid)
	return ok
}

// Remove detaches the component of type T from uid.
func Remove[T any](w *World, uid EntityUID) {
	if e, ok := w.Entities[uid]; ok {
		delete(e.comps, reflect.TypeFor[T]())
	}
}

// With returns all entities carrying a component of type T, in UID order.
func With[T any](w *World) []EntityUID {
	t := reflect.TypeFor[T]()
	var out []EntityUID
	for uid, e := range w.Entities {
		if _, ok := e.comps[t]; ok {
			out = append(out, uid)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
