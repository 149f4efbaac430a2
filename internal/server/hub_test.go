package server

import (
	"testing"
	"time"
)

// TestNewHub verifies that a new hub is fully initialized.
func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.clients == nil {
		t.Error("Client map is nil")
	}
	if hub.GetRegisterChan() == nil {
		t.Error("Register channel is nil")
	}
	if hub.GetUnregisterChan() == nil {
		t.Error("Unregister channel is nil")
	}
}

// TestSendUnknownConnection verifies that delivery to an unregistered
// connection id is a harmless no-op.
func TestSendUnknownConnection(t *testing.T) {
	hub := NewHub()

	hub.Send("no-such-connection", []byte(`{"type":"system"}`))
}

// TestSendAllWithoutClients verifies that a global broadcast with no
// registered clients is a harmless no-op.
func TestSendAllWithoutClients(t *testing.T) {
	hub := NewHub()

	hub.SendAll([]byte(`{"type":"allUsers","users":[]}`))
}

// TestHubShutdown verifies that a running hub shuts down cleanly.
func TestHubShutdown(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	time.Sleep(10 * time.Millisecond)

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("Hub shutdown failed: %v", err)
	}
}

// TestClientConnectionIDs verifies that each client gets a distinct
// connection id and an initialized send channel.
func TestClientConnectionIDs(t *testing.T) {
	hub := NewHub()

	first := NewClient(nil, hub, "127.0.0.1:12345")
	second := NewClient(nil, hub, "127.0.0.1:12346")

	if first.ID() == "" || second.ID() == "" {
		t.Fatal("Expected non-empty connection ids")
	}
	if first.ID() == second.ID() {
		t.Error("Expected distinct connection ids")
	}
	if first.GetSendChan() == nil {
		t.Error("Client send channel is nil")
	}
}
