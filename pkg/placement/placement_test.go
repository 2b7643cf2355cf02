package placement

import (
	"errors"
	"sync"
	"testing"

	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/events"
	"github.com/crystal-station/gostation/pkg/loc"
	"github.com/crystal-station/gostation/pkg/netmsg"
	"github.com/crystal-station/gostation/pkg/player"
	"golang.org/x/text/language"
)

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Receive(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
}

func (r *recorder) Closed() bool { return false }

type wallSpawner struct{}

func (wallSpawner) Populate(w *ecs.World, uid ecs.EntityUID, protoID string) error {
	if protoID != "Wall" {
		return errors.New("unknown prototype")
	}
	return nil
}

func setup(t *testing.T) (*Manager, *netmsg.Dispatcher, *player.Session, *recorder, *ecs.World) {
	t.Helper()
	w := ecs.NewWorld()
	w.SetSpawner(wallSpawner{})
	bus := events.NewBus()
	m := NewManager(w, bus, loc.New(language.AmericanEnglish))
	d := netmsg.NewDispatcher()
	m.Subscribe(d)

	s := player.NewManager().NewSession("Alice", "")
	rec := &recorder{}
	bus.Subscribe(s.ID, rec)
	return m, d, s, rec, w
}

func TestPlacementDeniedWithoutGate(t *testing.T) {
	m, d, s, rec, w := setup(t)
	var results []bool
	m.OnResult = func(ok bool) { results = append(results, ok) }

	d.Dispatch(s, &netmsg.MsgPlacement{EntityType: "Wall"})
	if len(w.Entities) != 0 {
		t.Error("nothing should spawn without a gate")
	}
	if len(rec.evs) != 1 || rec.evs[0].Text != "You are not allowed to place that here." {
		t.Errorf("events = %+v", rec.evs)
	}
	if len(results) != 1 || results[0] {
		t.Errorf("results = %v", results)
	}
}

func TestPlacementAllowed(t *testing.T) {
	m, d, s, rec, w := setup(t)
	var sawChannel int
	m.SetAllowPlacementFunc(func(p *netmsg.MsgPlacement) bool {
		sawChannel = p.MsgChannel
		return true
	})

	d.Dispatch(s, &netmsg.MsgPlacement{EntityType: "Wall", Coordinates: ecs.Coordinates{X: 3, Y: 4}})
	if sawChannel != s.Channel {
		t.Errorf("gate saw channel %d, want %d", sawChannel, s.Channel)
	}
	if len(w.Entities) != 1 {
		t.Fatalf("entities = %d, want 1", len(w.Entities))
	}
	if len(rec.evs) != 1 || rec.evs[0].Type != events.EvPlacement {
		t.Fatalf("events = %+v", rec.evs)
	}
	uid := rec.evs[0].Data["entity"].(ecs.EntityUID)
	if c := w.Transform(uid).Coordinates; c.X != 3 || c.Y != 4 {
		t.Errorf("placed at %+v", c)
	}

	d.Dispatch(s, &netmsg.MsgPlacement{EntityType: "Bogus"})
	if len(w.Entities) != 1 {
		t.Error("failed spawn should leave no entity")
	}
	if last := rec.evs[len(rec.evs)-1]; last.Type != events.EvText {
		t.Errorf("spawn error should be reported, got %+v", last)
	}
}

func TestSetAllowPlacementFuncNilDenies(t *testing.T) {
	m, d, s, _, w := setup(t)
	m.SetAllowPlacementFunc(func(*netmsg.MsgPlacement) bool { return true })
	m.SetAllowPlacementFunc(nil)
	if m.AllowPlacementFunc() != nil {
		t.Fatal("gate should be cleared")
	}
	d.Dispatch(s, &netmsg.MsgPlacement{EntityType: "Wall"})
	if len(w.Entities) != 0 {
		t.Error("cleared gate should deny")
	}
}
