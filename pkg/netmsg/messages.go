// Package netmsg defines the JSON messages exchanged with game clients and
// a dispatcher that routes client messages to subscribed systems.
package netmsg

import (
	"encoding/json"
	"fmt"

	"github.com/crystal-station/gostation/pkg/ecs"
	"github.com/crystal-station/gostation/pkg/events"
)

// Message is any client or server message. MsgName must be safe to call on
// a nil pointer.
type Message interface {
	MsgName() string
}

// Message names on the wire.
const (
	NameSandboxRespawn    = "sandbox_respawn"
	NameSandboxGiveAccess = "sandbox_give_access"
	NameSandboxGiveAghost = "sandbox_give_aghost"
	NameSandboxSuicide    = "sandbox_suicide"
	NamePlacement         = "placement"
	NameGetVerbs          = "get_verbs"
	NameInvokeVerb        = "invoke_verb"
	NameConsoleCommand    = "console_command"
	NameSandboxStatus     = "sandbox_status"
	NameVerbs             = "verbs"
	NameText              = "text"
)

// MsgSandboxRespawn asks for a fresh body.
type MsgSandboxRespawn struct{}

// MsgSandboxGiveAccess asks for an all-access ID.
type MsgSandboxGiveAccess struct{}

// MsgSandboxGiveAghost asks to become an (admin) ghost.
type MsgSandboxGiveAghost struct{}

// MsgSandboxSuicide asks to end the current body.
type MsgSandboxSuicide struct{}

// MsgPlacement asks to place an entity prototype at a position.
// MsgChannel is filled in by the server from the sending session.
type MsgPlacement struct {
	EntityType  string          `json:"entity_type"`
	Coordinates ecs.Coordinates `json:"coordinates"`
	MsgChannel  int             `json:"-"`
}

// MsgGetVerbs asks for the verbs available on a target.
type MsgGetVerbs struct {
	Target ecs.EntityUID `json:"target"`
}

// MsgInvokeVerb runs a verb on a target by its text.
type MsgInvokeVerb struct {
	Target ecs.EntityUID `json:"target"`
	Text   string        `json:"text"`
}

// MsgConsoleCommand runs a console command line.
type MsgConsoleCommand struct {
	Line string `json:"line"`
}

// MsgSandboxStatus tells clients whether sandbox mode is on.
type MsgSandboxStatus struct {
	SandboxAllowed bool `json:"sandbox_allowed"`
}

// VerbInfo is the client view of one verb.
type VerbInfo struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
	RSIPath  string `json:"rsi,omitempty"`
	State    string `json:"state,omitempty"`
	Message  string `json:"message,omitempty"`
}

// MsgVerbs answers MsgGetVerbs.
type MsgVerbs struct {
	Target ecs.EntityUID `json:"target"`
	Verbs  []VerbInfo    `json:"verbs"`
}

// MsgText is plain text for the client's chat/console pane.
type MsgText struct {
	Text string `json:"text"`
}

func (*MsgSandboxRespawn) MsgName() string    { return NameSandboxRespawn }
func (*MsgSandboxGiveAccess) MsgName() string { return NameSandboxGiveAccess }
func (*MsgSandboxGiveAghost) MsgName() string { return NameSandboxGiveAghost }
func (*MsgSandboxSuicide) MsgName() string    { return NameSandboxSuicide }
func (*MsgPlacement) MsgName() string         { return NamePlacement }
func (*MsgGetVerbs) MsgName() string          { return NameGetVerbs }
func (*MsgInvokeVerb) MsgName() string        { return NameInvokeVerb }
func (*MsgConsoleCommand) MsgName() string    { return NameConsoleCommand }
func (*MsgSandboxStatus) MsgName() string     { return NameSandboxStatus }
func (*MsgVerbs) MsgName() string             { return NameVerbs }
func (*MsgText) MsgName() string              { return NameText }

// ToEvent converts the status into a bus event.
func (m *MsgSandboxStatus) ToEvent() events.Event {
	return events.Event{
		Type: events.EvSandboxStatus,
		Data: map[string]any{"sandbox_allowed": m.SandboxAllowed},
	}
}

// ToEvent converts the verb list into a bus event.
func (m *MsgVerbs) ToEvent() events.Event {
	return events.Event{
		Type: events.EvVerbs,
		Data: map[string]any{"target": m.Target, "verbs": m.Verbs},
	}
}

// ToEvent converts the text into a bus event.
func (m *MsgText) ToEvent() events.Event {
	return events.Event{Type: events.EvText, Text: m.Text}
}

// Envelope is the JSON frame every message travels in.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// clientMessages are the messages a client may send.
var clientMessages = map[string]func() Message{
	NameSandboxRespawn:    func() Message { return &MsgSandboxRespawn{} },
	NameSandboxGiveAccess: func() Message { return &MsgSandboxGiveAccess{} },
	NameSandboxGiveAghost: func() Message { return &MsgSandboxGiveAghost{} },
	NameSandboxSuicide:    func() Message { return &MsgSandboxSuicide{} },
	NamePlacement:         func() Message { return &MsgPlacement{} },
	NameGetVerbs:          func() Message { return &MsgGetVerbs{} },
	NameInvokeVerb:        func() Message { return &MsgInvokeVerb{} },
	NameConsoleCommand:    func() Message { return &MsgConsoleCommand{} },
}

// Decode parses a client envelope into its message.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("netmsg: decode envelope: %w", err)
	}
	newMsg, ok := clientMessages[env.Type]
	if !ok {
		return nil, fmt.Errorf("netmsg: unknown message type %q", env.Type)
	}
	msg := newMsg()
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, msg); err != nil {
			return nil, fmt.Errorf("netmsg: decode %s: %w", env.Type, err)
		}
	}
	return msg, nil
}

// Encode wraps msg in an envelope.
func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("netmsg: encode %s: %w", msg.MsgName(), err)
	}
	return json.Marshal(Envelope{Type: msg.MsgName(), Data: data})
}
