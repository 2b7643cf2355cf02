package ecs

import (
	"errors"
	"testing"
)

type health struct{ Current int }
type marker struct{}

type fakeSpawner struct {
	fail bool
}

func (f fakeSpawner) Populate(w *World, uid EntityUID, protoID string) error {
	if f.fail {
		return errors.New("no such prototype")
	}
	w.SetName(uid, "spawned "+protoID)
	Add(w, uid, &health{Current: 100})
	return nil
}

func TestComponentLifecycle(t *testing.T) {
	w := NewWorld()
	uid := w.Create("Bob", Coordinates{X: 1, Y: 2})

	if Has[health](w, uid) {
		t.Fatal("new entity should have no components")
	}
	Add(w, uid, &health{Current: 50})

	h, ok := Get[health](w, uid)
	if !ok || h.Current != 50 {
		t.Fatalf("Get[health] = %v, %v", h, ok)
	}
	h.Current = 10
	if h2, _ := Get[health](w, uid); h2.Current != 10 {
		t.Error("components should be stored by pointer")
	}

	Remove[health](w, uid)
	if Has[health](w, uid) {
		t.Error("component should be gone after Remove")
	}
}

func TestGetOnMissingEntity(t *testing.T) {
	w := NewWorld()
	if _, ok := Get[health](w, 42); ok {
		t.Error("expected no component on missing entity")
	}
	if Add(w, 42, &health{}) != nil {
		t.Error("Add on missing entity should return nil")
	}
}

func TestSpawn(t *testing.T) {
	w := NewWorld()
	if _, err := w.Spawn("Thing", Coordinates{}); err == nil {
		t.Fatal("expected error without spawner")
	}

	w.SetSpawner(fakeSpawner{})
	uid, err := w.Spawn("Thing", Coordinates{X: 3})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	meta := w.MetaData(uid)
	if meta.Prototype != "Thing" || meta.Name != "spawned Thing" {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if w.Transform(uid).Coordinates.X != 3 {
		t.Error("coordinates not applied")
	}

	w.SetSpawner(fakeSpawner{fail: true})
	before := len(w.Entities)
	if _, err := w.Spawn("Nope", Coordinates{}); err == nil {
		t.Fatal("expected populate error")
	}
	if len(w.Entities) != before {
		t.Error("failed spawn should not leave an entity behind")
	}
}

func TestWith(t *testing.T) {
	w := NewWorld()
	a := w.Create("a", Coordinates{})
	b := w.Create("b", Coordinates{})
	c := w.Create("c", Coordinates{})
	Add(w, c, &marker{})
	Add(w, a, &marker{})
	_ = b

	got := With[marker](w)
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Errorf("With[marker] = %v, want [%d %d]", got, a, c)
	}
}

func TestEventBus(t *testing.T) {
	type ping struct{ N int }
	bus := NewEventBus()

	var seen []int
	unsub := Subscribe(bus, func(ev *ping) { seen = append(seen, ev.N) })
	Subscribe(bus, func(ev *ping) { ev.N++ })

	ev := &ping{N: 1}
	Raise(bus, ev)
	if len(seen) != 1 || seen[0] != 1 {
		t.Errorf("first handler saw %v", seen)
	}
	if ev.N != 2 {
		t.Errorf("second handler should mutate the event, got N=%d", ev.N)
	}

	unsub()
	if Subscribers[ping](bus) != 1 {
		t.Errorf("expected 1 subscriber after unsubscribe, got %d", Subscribers[ping](bus))
	}
	Raise(bus, &ping{N: 5})
	if len(seen) != 1 {
		t.Error("unsubscribed handler should not run")
	}
}
