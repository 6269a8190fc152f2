package bridge

import "time"

// EventChannel is the logical channel every agent event is published on.
const EventChannel = "multi-agent"

// Agent event kinds understood by the planner.
const (
	EventPosition   = "position"
	EventStatus     = "status"
	EventPerception = "perception"
	EventRoleUpdate = "roleUpdate"
)

// AgentEvent is a typed message emitted from this system to the planner
// service, batched and sent over the outbound duplex channel.
type AgentEvent struct {
	Channel   string         `json:"channel"`
	Event     string         `json:"event"`
	AgentID   string         `json:"agentId"`
	Timestamp int64          `json:"timestamp"`
	Payload   map[string]any `json:"payload"`
}

// NewEvent builds an AgentEvent on the multi-agent channel with a unix
// millisecond timestamp.
func NewEvent(event, agentID string, payload map[string]any, at time.Time) AgentEvent {
	return AgentEvent{
		Channel:   EventChannel,
		Event:     event,
		AgentID:   agentID,
		Timestamp: at.UnixMilli(),
		Payload:   payload,
	}
}

// plannerEnvelope is the wire document wrapping a batch of agent events.
type plannerEnvelope struct {
	Type string       `json:"type"`
	Args envelopeArgs `json:"args"`
}

type envelopeArgs struct {
	Events []AgentEvent `json:"events"`
}
