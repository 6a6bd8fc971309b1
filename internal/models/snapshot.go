package models

// Snapshot is the full state handed to a session on bootstrap: the shared
// history, the private threads involving the identity, and the friend state
// the client re-derives on every connect.
type Snapshot struct {
	Shared  []Message            `json:"shared"`
	Private map[string][]Message `json:"private"` // pair key -> ordered messages
	Friends []string             `json:"friends"`
	Pending []string             `json:"pending"` // identities with requests waiting on us
}
