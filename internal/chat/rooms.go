// Package chat implements the room registry that defines the fixed set of
// valid rooms, the designated global room, and the default room.
package chat

import "strings"

// Registry holds the fixed set of valid room identifiers for the service.
// One room is designated as the global room, used exclusively for system
// notices and the cross-room roster feed.
type Registry struct {
	rooms       []string
	roomSet     map[string]struct{}
	globalRoom  string
	defaultRoom string
}

// NewRegistry creates a Registry from the configured room list. The global
// and default rooms are always included even if missing from the list.
func NewRegistry(rooms []string, globalRoom, defaultRoom string) *Registry {
	r := &Registry{
		globalRoom:  normalizeRoom(globalRoom),
		defaultRoom: normalizeRoom(defaultRoom),
		roomSet:     make(map[string]struct{}, len(rooms)+2),
	}

	add := func(room string) {
		if room == "" {
			return
		}
		if _, exists := r.roomSet[room]; exists {
			return
		}
		r.roomSet[room] = struct{}{}
		r.rooms = append(r.rooms, room)
	}

	add(r.globalRoom)
	for _, room := range rooms {
		add(normalizeRoom(room))
	}
	add(r.defaultRoom)

	return r
}

func normalizeRoom(room string) string {
	return strings.ToLower(strings.TrimSpace(room))
}

// Validate normalizes a room identifier (trimmed, case-insensitive) and
// reports whether it names a known room.
func (r *Registry) Validate(room string) (string, bool) {
	normalized := normalizeRoom(room)
	if normalized == "" {
		return "", false
	}
	_, exists := r.roomSet[normalized]
	return normalized, exists
}

// All returns a copy of the room list in registration order.
func (r *Registry) All() []string {
	return append([]string(nil), r.rooms...)
}

// GlobalRoom returns the room reserved for join/leave notices and the
// all-users roster feed.
func (r *Registry) GlobalRoom() string {
	return r.globalRoom
}

// DefaultRoom returns the room used when a join request omits one.
func (r *Registry) DefaultRoom() string {
	return r.defaultRoom
}
