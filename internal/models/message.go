package models

// Message kinds. A file message carries an opaque upload URL in Body;
// the server never interprets it.
const (
	KindText = "text"
	KindFile = "file"
)

// Message represents a chat message in the shared channel or a private thread.
type Message struct {
	ID        string `json:"id"`               // ULID
	Author    string `json:"author"`           // identity of the sender
	Body      string `json:"body"`
	Kind      string `json:"kind"`             // "text" or "file"
	Target    string `json:"target,omitempty"` // empty for shared, else peer identity
	Timestamp int64  `json:"ts"`               // Unix ms
}

// Shared reports whether the message belongs to the shared channel.
func (m *Message) Shared() bool {
	return m.Target == ""
}
