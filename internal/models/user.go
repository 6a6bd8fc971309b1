package models

import "time"

// User represents a registered account.
type User struct {
	Identity     string    `json:"identity"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Ban represents an active ban on an identity. Until is nil for permanent bans.
type Ban struct {
	Identity string     `json:"identity"`
	Until    *time.Time `json:"until,omitempty"`
}
