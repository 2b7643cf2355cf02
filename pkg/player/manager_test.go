package player

import (
	"testing"

	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/events"
)

func TestNewSessionLookup(t *testing.T) {
	m := NewManager()
	a := m.NewSession("Alice", "127.0.0.1:1")
	b := m.NewSession("Bob", "127.0.0.1:2")

	if a.Channel == b.Channel {
		t.Fatal("sessions should get distinct channels")
	}
	if a.Status() != StatusConnecting {
		t.Errorf("new session status = %v, want connecting", a.Status())
	}
	if got, ok := m.GetSessionByChannel(b.Channel); !ok || got != b {
		t.Error("GetSessionByChannel did not find Bob")
	}
	if got, ok := m.GetSessionByName("alice"); !ok || got != a {
		t.Error("GetSessionByName should be case-insensitive")
	}
	if got := m.Sessions(); len(got) != 2 || got[0] != a {
		t.Errorf("Sessions() = %v", got)
	}
}

func TestStatusListeners(t *testing.T) {
	m := NewManager()
	var changes []StatusChange
	unsub := m.OnStatusChanged(func(c StatusChange) { changes = append(changes, c) })

	s := m.NewSession("Alice", "")
	m.SetStatus(s, StatusConnected)
	m.SetStatus(s, StatusConnected) // no-op

	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	if changes[0].Old != StatusConnecting || changes[0].New != StatusConnected {
		t.Errorf("unexpected change %+v", changes[0])
	}

	unsub()
	m.SetStatus(s, StatusInGame)
	if len(changes) != 1 {
		t.Error("listener should not fire after unsubscribe")
	}
}

func TestAttachDetach(t *testing.T) {
	m := NewManager()
	s := m.NewSession("Alice", "")
	m.SetStatus(s, StatusConnected)

	if _, ok := s.AttachedEntity(); ok {
		t.Fatal("new session should not be attached")
	}
	m.Attach(s, ecs.EntityUID(7))
	if uid, ok := s.AttachedEntity(); !ok || uid != 7 {
		t.Errorf("AttachedEntity = %v, %v", uid, ok)
	}
	if s.Status() != StatusInGame {
		t.Errorf("status after attach = %v", s.Status())
	}

	m.Detach(s)
	if _, ok := s.AttachedEntity(); ok {
		t.Error("still attached after Detach")
	}
	if s.Status() != StatusConnected {
		t.Errorf("status after detach = %v", s.Status())
	}
}

func TestRemoveClosesSession(t *testing.T) {
	m := NewManager()
	s := m.NewSession("Alice", "")
	var last StatusChange
	m.OnStatusChanged(func(c StatusChange) { last = c })

	m.Remove(s)
	if !s.Closed() {
		t.Error("removed session should be closed")
	}
	if last.New != StatusDisconnected {
		t.Errorf("last status = %v, want disconnected", last.New)
	}
	if _, ok := m.Get(s.ID); ok {
		t.Error("removed session still registered")
	}
}

func TestSessionReceive(t *testing.T) {
	var got []events.Event
	s := &Session{SendFunc: func(ev events.Event) { got = append(got, ev) }}
	s.Receive(events.Event{Type: events.EvText, Text: "hi"})
	if len(got) != 1 || got[0].Text != "hi" {
		t.Errorf("Receive did not forward: %+v", got)
	}
}
