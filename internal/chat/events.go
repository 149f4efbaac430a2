// Package chat defines the tagged event payloads exchanged between clients
// and the presence core. Every outbound payload carries a type tag so
// clients can dispatch without inspecting the shape.
package chat

import "time"

// Event type tags shared by inbound and outbound payloads.
const (
	EventJoin     = "join"
	EventMessage  = "message"
	EventSystem   = "system"
	EventHistory  = "history"
	EventUsers    = "users"
	EventAllUsers = "allUsers"
	EventError    = "error"
)

// Presence status values stored per username in the global roster.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// JoinRequest is the inbound payload asking to enter a room under a
// username. Room may be empty, in which case the default room is used.
type JoinRequest struct {
	Type     string `json:"type,omitempty"`
	Username string `json:"username"`
	Room     string `json:"room"`
}

// MessageRequest is the inbound payload carrying chat text for the sender's
// current room.
type MessageRequest struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// Message is a chat or system message. Immutable once created; the
// timestamp is always server-assigned.
type Message struct {
	Type      string    `json:"type"`
	Username  string    `json:"username,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Room      string    `json:"room"`
}

// HistoryEvent replays recent room messages to a joining connection.
type HistoryEvent struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
	Room     string    `json:"room"`
}

// RoomUsersEvent carries the roster of one room.
type RoomUsersEvent struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
	Room  string   `json:"room"`
}

// UserStatus is one entry of the global roster.
type UserStatus struct {
	Username string    `json:"username"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"lastSeen"`
}

// AllUsersEvent carries the global roster, broadcast to every connection on
// each status change.
type AllUsersEvent struct {
	Type  string       `json:"type"`
	Users []UserStatus `json:"users"`
}

// ErrorEvent reports a validation or internal failure to the originating
// connection. Non-fatal to the connection.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
