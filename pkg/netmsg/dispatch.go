package netmsg

import (
	"fmt"
	"sync"

	"github.com/crystal-station/gostation/pkg/player"
)

// EntitySessionEventArgs carries the sender of a client message.
type EntitySessionEventArgs struct {
	SenderSession *player.Session
}

type handlerEntry struct {
	id int
	fn func(Message, EntitySessionEventArgs)
}

// Dispatcher routes decoded client messages to subscribed handlers.
// Handlers run synchronously on the dispatching goroutine.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]handlerEntry
	nextID   int
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]handlerEntry)}
}

// Subscribe registers fn for messages of type T (a pointer message type).
// The returned func removes the handler.
func Subscribe[T Message](d *Dispatcher, fn func(T, EntitySessionEventArgs)) func() {
	var zero T
	name := zero.MsgName()

	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.handlers[name] = append(d.handlers[name], handlerEntry{
		id: id,
		fn: func(m Message, args EntitySessionEventArgs) {
			if typed, ok := m.(T); ok {
				fn(typed, args)
			}
		},
	})
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		hs := d.handlers[name]
		for i, h := range hs {
			if h.id == id {
				d.handlers[name] = append(hs[:i:i], hs[i+1:]...)
				break
			}
		}
		if len(d.handlers[name]) == 0 {
			delete(d.handlers, name)
		}
	}
}

// Dispatch delivers msg from session to every handler for its type.
// It returns false if nothing was subscribed.
func (d *Dispatcher) Dispatch(session *player.Session, msg Message) bool {
	d.mu.RLock()
	hs := append([]handlerEntry(nil), d.handlers[msg.MsgName()]...)
	d.mu.RUnlock()

	args := EntitySessionEventArgs{SenderSession: session}
	for _, h := range hs {
		h.fn(msg, args)
	}
	return len(hs) > 0
}

// DispatchRaw decodes a JSON envelope and dispatches it.
func (d *Dispatcher) DispatchRaw(session *player.Session, data []byte) error {
	msg, err := Decode(data)
	if err != nil {
		return err
	}
	if !d.Dispatch(session, msg) {
		return fmt.Errorf("netmsg: no handler for %s", msg.MsgName())
	}
	return nil
}

// Handlers returns the number of handlers subscribed to the named message.
func (d *Dispatcher) Handlers(name string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[name])
}
