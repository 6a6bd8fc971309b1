package ws

import "encoding/json"

// Event is the structured frame exchanged with clients. The payload schema
// depends on Type; the core never sees raw bytes beyond this envelope.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client -> server payloads.

type sendMessagePayload struct {
	Body   string `json:"body"`
	Kind   string `json:"kind,omitempty"`
	Target string `json:"target,omitempty"`
}

type deleteMessagePayload struct {
	ID     string `json:"id"`
	Target string `json:"target,omitempty"`
}

type friendRequestPayload struct {
	To string `json:"to"`
}

type friendRespondPayload struct {
	From   string `json:"from"`
	Accept bool   `json:"accept"`
}

// errorPayload reports a locally-rejected operation back to the requester.
// Domain errors never propagate to other sessions.
type errorPayload struct {
	Op     string `json:"op"`
	Reason string `json:"reason"`
}

type presencePayload struct {
	Identity string `json:"identity"`
}
