// Package agent drives one persona run against the model stream and
// translates the provider's heterogeneous chunks into a single ordered
// event sequence.
package agent

import "encoding/json"

// EventType tags one entry of the stream event union.
type EventType string

const (
	EventTextDelta   EventType = "text-delta"
	EventToolCall    EventType = "tool-call"
	EventToolResult  EventType = "tool-result"
	EventAgentUpdate EventType = "agent-update"
	EventData        EventType = "data"
	EventFinish      EventType = "finish"
	EventError       EventType = "error"
)

// Event is one unit of a run's ordered output stream. It is transient wire
// data; only the reduced final text and structured side effects are
// persisted.
type Event struct {
	Type EventType `json:"type"`

	// Delta carries incremental text for text-delta events.
	Delta string `json:"delta,omitempty"`

	// AgentID names the persona the event originated from.
	AgentID string `json:"agentId,omitempty"`

	// ToolCallID correlates a tool-call with its tool-result even when
	// interleaved with unrelated deltas.
	ToolCallID string `json:"toolCallId,omitempty"`
	ToolName   string `json:"toolName,omitempty"`

	// Payload carries structured data for tool-call, tool-result and data
	// events. Always valid JSON.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Kind distinguishes error classes and cancellation on terminal
	// events, so the UI can render a deterministic message.
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`
}

// Terminal event kinds surfaced to clients.
const (
	KindStopped     = "stopped"
	KindTimeout     = "timeout"
	KindStream      = "stream_error"
	KindPersistence = "persistence_error"
)

// TextDelta builds a text-delta event.
func TextDelta(agentID, delta string) Event {
	return Event{Type: EventTextDelta, AgentID: agentID, Delta: delta}
}

// Finish builds the successful terminal event.
func Finish(agentID string) Event {
	return Event{Type: EventFinish, AgentID: agentID}
}

// Errorf builds the failing terminal event.
func Errorf(kind, message string) Event {
	return Event{Type: EventError, Kind: kind, Error: message}
}
