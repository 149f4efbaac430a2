package chat_test

import (
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// TestRosterConsistency verifies the core invariant: a username appears in
// a room's roster iff at least one live session has that (username, room).
func TestRosterConsistency(t *testing.T) {
	store := chat.NewSessionStore()

	store.AddSession("conn-1", "alice", "general")
	store.AddSession("conn-2", "bob", "general")

	roster := store.RoomRoster("general")
	if len(roster) != 2 || roster[0] != "alice" || roster[1] != "bob" {
		t.Fatalf("Expected roster [alice bob], got %v", roster)
	}

	removed := store.RemoveSession("conn-1")
	if removed == nil || removed.Username != "alice" || removed.Room != "general" {
		t.Fatalf("RemoveSession returned %+v, want alice/general", removed)
	}

	roster = store.RoomRoster("general")
	if len(roster) != 1 || roster[0] != "bob" {
		t.Fatalf("Expected roster [bob], got %v", roster)
	}
}

// TestRemoveSessionBeforeJoin verifies that removing a connection with no
// session returns nil (disconnect before join).
func TestRemoveSessionBeforeJoin(t *testing.T) {
	store := chat.NewSessionStore()

	if removed := store.RemoveSession("ghost"); removed != nil {
		t.Fatalf("Expected nil for unknown connection, got %+v", removed)
	}
}

// TestMultiSessionRosterRule verifies that a username stays in a room's
// roster while any of its sessions remains there, no matter how many
// devices it has.
func TestMultiSessionRosterRule(t *testing.T) {
	store := chat.NewSessionStore()

	store.AddSession("conn-1", "alice", "general")
	store.AddSession("conn-2", "alice", "general")

	store.RemoveSession("conn-1")
	roster := store.RoomRoster("general")
	if len(roster) != 1 || roster[0] != "alice" {
		t.Fatalf("Expected alice to remain in roster, got %v", roster)
	}

	store.RemoveSession("conn-2")
	if roster := store.RoomRoster("general"); len(roster) != 0 {
		t.Fatalf("Expected empty roster, got %v", roster)
	}
}

// TestMoveSession verifies room switches: the session survives, the old
// roster entry goes only when it was the last session in that room, and
// the new roster gains the username.
func TestMoveSession(t *testing.T) {
	store := chat.NewSessionStore()
	store.AddSession("conn-1", "alice", "general")

	oldRoom, moved := store.MoveSession("conn-1", "tech")
	if !moved || oldRoom != "general" {
		t.Fatalf("MoveSession = (%q, %v), want (general, true)", oldRoom, moved)
	}

	if roster := store.RoomRoster("general"); len(roster) != 0 {
		t.Errorf("Expected alice removed from general, got %v", roster)
	}
	if roster := store.RoomRoster("tech"); len(roster) != 1 || roster[0] != "alice" {
		t.Errorf("Expected alice in tech, got %v", roster)
	}

	session, ok := store.Get("conn-1")
	if !ok || session.Room != "tech" {
		t.Errorf("Session room = %q, want tech", session.Room)
	}
}

// TestMoveSessionKeepsSharedRosterEntry verifies that switching one of two
// same-room sessions leaves the username in the old room's roster.
func TestMoveSessionKeepsSharedRosterEntry(t *testing.T) {
	store := chat.NewSessionStore()
	store.AddSession("conn-1", "alice", "general")
	store.AddSession("conn-2", "alice", "general")

	store.MoveSession("conn-1", "tech")

	if roster := store.RoomRoster("general"); len(roster) != 1 || roster[0] != "alice" {
		t.Errorf("Expected alice to remain in general, got %v", roster)
	}
	if roster := store.RoomRoster("tech"); len(roster) != 1 || roster[0] != "alice" {
		t.Errorf("Expected alice in tech, got %v", roster)
	}
}

// TestMoveSessionUnknownConnection verifies that moving a connection with
// no session reports failure without mutating rosters.
func TestMoveSessionUnknownConnection(t *testing.T) {
	store := chat.NewSessionStore()

	if _, moved := store.MoveSession("ghost", "tech"); moved {
		t.Fatal("Expected MoveSession to fail for unknown connection")
	}
	if roster := store.RoomRoster("tech"); len(roster) != 0 {
		t.Fatalf("Expected empty tech roster, got %v", roster)
	}
}

// TestPresenceLookups verifies HasAnySessionFor and IsPresentInAnyRoom
// across rooms and devices.
func TestPresenceLookups(t *testing.T) {
	store := chat.NewSessionStore()

	if store.HasAnySessionFor("alice") || store.IsPresentInAnyRoom("alice") {
		t.Fatal("Expected no presence before any session")
	}

	store.AddSession("conn-1", "alice", "general")
	store.AddSession("conn-2", "alice", "tech")

	if !store.HasAnySessionFor("alice") {
		t.Error("Expected HasAnySessionFor to be true")
	}
	if !store.IsPresentInAnyRoom("alice") {
		t.Error("Expected IsPresentInAnyRoom to be true")
	}

	store.RemoveSession("conn-1")
	if !store.HasAnySessionFor("alice") || !store.IsPresentInAnyRoom("alice") {
		t.Error("Expected presence to survive while one session remains")
	}

	store.RemoveSession("conn-2")
	if store.HasAnySessionFor("alice") || store.IsPresentInAnyRoom("alice") {
		t.Error("Expected no presence after last session removed")
	}
}

// TestGlobalRosterNeverForgets verifies that global entries are created on
// first join, toggled on status changes, and never deleted.
func TestGlobalRosterNeverForgets(t *testing.T) {
	store := chat.NewSessionStore()

	store.SetGlobalStatus("alice", chat.StatusConnected)
	store.SetGlobalStatus("bob", chat.StatusConnected)
	store.SetGlobalStatus("alice", chat.StatusDisconnected)

	roster := store.GlobalRoster()
	if len(roster) != 2 {
		t.Fatalf("Expected 2 global entries, got %d", len(roster))
	}
	if roster[0].Username != "alice" || roster[0].Status != chat.StatusDisconnected {
		t.Errorf("Expected alice disconnected, got %+v", roster[0])
	}
	if roster[1].Username != "bob" || roster[1].Status != chat.StatusConnected {
		t.Errorf("Expected bob connected, got %+v", roster[1])
	}
	if roster[0].LastSeen.IsZero() {
		t.Error("Expected lastSeen to be stamped")
	}
}

// TestDepartureLifecycle verifies open/peek/consume semantics: at most one
// pending departure per username, consumed exactly once.
func TestDepartureLifecycle(t *testing.T) {
	store := chat.NewSessionStore()

	if _, pending := store.PeekDeparture("alice"); pending {
		t.Fatal("Expected no pending departure initially")
	}
	if store.ConsumeDeparture("alice") {
		t.Fatal("Expected ConsumeDeparture to report nothing to consume")
	}

	store.OpenDeparture("alice", time.AfterFunc(time.Hour, func() {}))

	disconnectedAt, pending := store.PeekDeparture("alice")
	if !pending {
		t.Fatal("Expected a pending departure after OpenDeparture")
	}
	if time.Since(disconnectedAt) > time.Second {
		t.Error("Expected disconnectedAt to be stamped at open time")
	}

	// Replacing keeps at most one pending departure per username.
	store.OpenDeparture("alice", time.AfterFunc(time.Hour, func() {}))

	if !store.ConsumeDeparture("alice") {
		t.Fatal("Expected ConsumeDeparture to succeed")
	}
	if store.ConsumeDeparture("alice") {
		t.Fatal("Expected second ConsumeDeparture to report nothing left")
	}
	if _, pending := store.PeekDeparture("alice"); pending {
		t.Fatal("Expected no pending departure after consume")
	}
}

// TestRoomConnections verifies that fan-out targeting returns exactly the
// connections whose sessions are in the room.
func TestRoomConnections(t *testing.T) {
	store := chat.NewSessionStore()
	store.AddSession("conn-1", "alice", "general")
	store.AddSession("conn-2", "bob", "general")
	store.AddSession("conn-3", "carol", "tech")

	conns := store.RoomConnections("general")
	if len(conns) != 2 {
		t.Fatalf("Expected 2 connections in general, got %d", len(conns))
	}
	for _, connID := range conns {
		if connID == "conn-3" {
			t.Error("tech connection included in general fan-out")
		}
	}
}
