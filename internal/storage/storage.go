package storage

import "time"

// Event is one completed turn: the operator's text and the agent's reply,
// with the conversation and remote session it belongs to.
type Event struct {
	Timestamp         time.Time `json:"timestamp"`
	Conversation      string    `json:"conversation"`
	AgentRID          string    `json:"agent_rid"`
	SessionRID        string    `json:"session_rid"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
}

// Recorder persists turn events. LoadInteractions returns them in the
// order they were appended. Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
}
