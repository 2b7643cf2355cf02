package events

import "github.com/google/uuid"

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvText          EventType = iota // Raw text (universal fallback)
	EvSandboxStatus                  // Sandbox mode toggled
	EvVerbs                          // Verb list for a target
	EvRunLevel                       // Round state changed
	EvAdminLog                       // Admin action notice
	EvPlacement                      // Placement result
	EvAttach                         // Session attached to a new entity
	EvRole                           // Antagonist role granted
)

// String returns the wire name for the event type.
func (t EventType) String() string {
	switch t {
	case EvText:
		return "text"
	case EvSandboxStatus:
		return "sandbox_status"
	case EvVerbs:
		return "verbs"
	case EvRunLevel:
		return "run_level"
	case EvAdminLog:
		return "admin_log"
	case EvPlacement:
		return "placement"
	case EvAttach:
		return "attach"
	case EvRole:
		return "role"
	default:
		return "unknown"
	}
}

// Event is a structured server-to-client event that flows through the bus.
// Transports decide how to encode each event: the websocket transport sends
// Type, Text and Data as a JSON envelope.
type Event struct {
	Type    EventType
	Session uuid.UUID      // Recipient (uuid.Nil for broadcast)
	Text    string         // Human-readable text
	Data    map[string]any // Structured payload
}
