package model

import "time"

// Session roles. Skip and block are restricted to DJ and moderator.
const (
	RoleListener  = "listener"
	RoleDJ        = "dj"
	RoleModerator = "moderator"
)

// Session connection states.
const (
	SessionConnected    = "connected"
	SessionAlive        = "alive"
	SessionDisconnected = "disconnected"
)

// ClientSession describes one registered real-time client. Created on a
// successful handshake, touched by keep-alives, removed on disconnect.
type ClientSession struct {
	APIKey       string    `json:"apiKey"`
	ClientID     string    `json:"clientId"`
	ClientName   string    `json:"clientName"`
	ConnectionID string    `json:"connectionId"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	LastSeen     time.Time `json:"lastSeen"`
}

// Privileged reports whether the session may skip or block tracks.
func (s *ClientSession) Privileged() bool {
	return s != nil && PrivilegedRole(s.Role)
}

// PrivilegedRole reports whether a role may skip or block tracks.
func PrivilegedRole(role string) bool {
	return role == RoleDJ || role == RoleModerator
}
