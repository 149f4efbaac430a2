// Package chat keeps the per-room bounded message history used to replay
// recent messages to newly joined connections.
package chat

import "sync"

// History stores the most recent messages per room, evicting the oldest
// once a room reaches the configured limit.
type History struct {
	mu       sync.RWMutex
	messages map[string][]Message
	limit    int
}

// NewHistory creates a History bounded at limit messages per room.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 100
	}
	return &History{
		messages: make(map[string][]Message),
		limit:    limit,
	}
}

// Append adds a message to its room's history, evicting the oldest entry
// when the room is at capacity.
func (h *History) Append(room string, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	entries := h.messages[room]
	if len(entries) >= h.limit {
		entries = entries[1:]
	}
	h.messages[room] = append(entries, msg)
}

// Messages returns a copy of the room's history, oldest first. A room with
// no history yields an empty, non-nil slice so it serializes as [].
func (h *History) Messages(room string) []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := h.messages[room]
	result := make([]Message, len(entries))
	copy(result, entries)
	return result
}

// Len reports how many messages a room currently holds.
func (h *History) Len(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages[room])
}
