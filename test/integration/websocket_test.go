package integration

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/test/testhelpers"
	"github.com/gorilla/websocket"
)

// startChatServer starts an HTTP test server on the shared hub and returns
// the WebSocket endpoint URL.
func startChatServer(t *testing.T) string {
	t.Helper()

	mux := server.SetupRoutes()
	testServer := httptest.NewServer(mux)
	t.Cleanup(testServer.Close)

	cfg := server.NewConfig()
	cfg.Chat.ReconnectWindow = reconnectWindow
	cfg.AllowedOrigins = append([]string{testServer.URL, testOriginURL}, cfg.AllowedOrigins...)
	server.SetConfig(cfg)
	t.Cleanup(func() { server.SetConfig(nil) })

	u, err := url.Parse(testServer.URL)
	if err != nil {
		t.Fatalf("Failed to parse test server URL: %v", err)
	}
	u.Scheme = "ws"
	u.Path = "/ws"
	return u.String()
}

// joinRoom connects a client and completes a join, waiting for the room
// roster so the session is known to be established.
func joinRoom(t *testing.T, wsURL, username, room string) *websocket.Conn {
	t.Helper()

	conn, err := testhelpers.ConnectWebSocket(wsURL)
	if err != nil {
		t.Fatalf("Failed to connect %s: %v", username, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	if err := testhelpers.SendJoin(conn, username, room); err != nil {
		t.Fatalf("Failed to send join for %s: %v", username, err)
	}
	testhelpers.WaitForEvent(t, conn, "users", 3*time.Second)
	return conn
}

// TestJoinFlow verifies the full join sequence over a real connection:
// history replay, room roster, global roster, and the joined notice.
func TestJoinFlow(t *testing.T) {
	wsURL := startChatServer(t)

	conn, err := testhelpers.ConnectWebSocket(wsURL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := testhelpers.SendJoin(conn, "ivy", "general"); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}

	history := testhelpers.WaitForEvent(t, conn, "history", 3*time.Second)
	if history["room"] != "general" {
		t.Errorf("History room = %v, want general", history["room"])
	}

	roster := testhelpers.WaitForEvent(t, conn, "users", 3*time.Second)
	users, _ := roster["users"].([]interface{})
	found := false
	for _, user := range users {
		if user == "ivy" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected ivy in room roster, got %v", users)
	}

	testhelpers.WaitForEvent(t, conn, "allUsers", 3*time.Second)

	notice := testhelpers.WaitForEventMatching(t, conn, 3*time.Second, func(event map[string]interface{}) bool {
		return event["type"] == "system" && strings.Contains(testhelpers.EventText(event), "ivy joined the chat")
	})
	if notice["room"] != "global" {
		t.Errorf("Joined notice room = %v, want global", notice["room"])
	}
}

// TestMessageFanout verifies that a message reaches every connection in the
// sender's room.
func TestMessageFanout(t *testing.T) {
	wsURL := startChatServer(t)

	sender := joinRoom(t, wsURL, "mona", "tech")
	receiver := joinRoom(t, wsURL, "nate", "tech")

	if err := testhelpers.SendChatMessage(sender, "hello tech"); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}

	for name, conn := range map[string]*websocket.Conn{"sender": sender, "receiver": receiver} {
		event := testhelpers.WaitForEvent(t, conn, "message", 3*time.Second)
		if event["username"] != "mona" || event["text"] != "hello tech" || event["room"] != "tech" {
			t.Errorf("Unexpected message on %s connection: %v", name, event)
		}
	}
}

// TestMessageBeforeJoin verifies that sending a message without joining
// first produces an error event.
func TestMessageBeforeJoin(t *testing.T) {
	wsURL := startChatServer(t)

	conn, err := testhelpers.ConnectWebSocket(wsURL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := testhelpers.SendChatMessage(conn, "too soon"); err != nil {
		t.Fatalf("Failed to send message: %v", err)
	}

	errEvent := testhelpers.WaitForEvent(t, conn, "error", 3*time.Second)
	if message, _ := errEvent["message"].(string); !strings.Contains(message, "join") {
		t.Errorf("Expected a join-first error, got %v", errEvent)
	}
}

// TestMalformedFrame verifies that a frame that is not valid JSON produces
// an error event rather than dropping the connection.
func TestMalformedFrame(t *testing.T) {
	wsURL := startChatServer(t)

	conn, err := testhelpers.ConnectWebSocket(wsURL)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer func() { _ = conn.Close() }()

	if err := testhelpers.SendRawMessage(conn, websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("Failed to send raw frame: %v", err)
	}

	testhelpers.WaitForEvent(t, conn, "error", 3*time.Second)

	// The connection survives and can still join.
	if err := testhelpers.SendJoin(conn, "quin", "random"); err != nil {
		t.Fatalf("Failed to join after malformed frame: %v", err)
	}
	testhelpers.WaitForEvent(t, conn, "users", 3*time.Second)
}

// TestOriginRejected verifies that the handshake fails for an origin outside
// the allow-list.
func TestOriginRejected(t *testing.T) {
	wsURL := startChatServer(t)

	conn, err := testhelpers.ConnectWebSocketWithOrigin(wsURL, "http://evil.example")
	if err == nil {
		_ = conn.Close()
		t.Fatal("Expected handshake to fail for disallowed origin")
	}
}

// TestLeaveNoticeAfterGraceWindow verifies that closing a user's only
// connection produces a left notice once the grace window elapses.
func TestLeaveNoticeAfterGraceWindow(t *testing.T) {
	wsURL := startChatServer(t)

	observer := joinRoom(t, wsURL, "watcher-leave", "random")
	drifter := joinRoom(t, wsURL, "drifter", "random")

	if err := testhelpers.CloseWebSocket(drifter); err != nil {
		t.Fatalf("Failed to close connection: %v", err)
	}

	testhelpers.WaitForEventMatching(t, observer, reconnectWindow+3*time.Second, func(event map[string]interface{}) bool {
		return event["type"] == "system" && strings.Contains(testhelpers.EventText(event), "drifter left the chat")
	})
}

// TestReloadSuppressesLeaveNotice verifies that a close followed by a quick
// reconnect inside the grace window produces neither a left notice nor a
// second joined notice.
func TestReloadSuppressesLeaveNotice(t *testing.T) {
	wsURL := startChatServer(t)

	observer := joinRoom(t, wsURL, "watcher-reload", "gaming")
	hopper := joinRoom(t, wsURL, "hopper", "gaming")

	testhelpers.WaitForEventMatching(t, observer, 3*time.Second, func(event map[string]interface{}) bool {
		return event["type"] == "system" && strings.Contains(testhelpers.EventText(event), "hopper joined the chat")
	})

	if err := testhelpers.CloseWebSocket(hopper); err != nil {
		t.Fatalf("Failed to close connection: %v", err)
	}

	// Reconnect well inside the grace window.
	joinRoom(t, wsURL, "hopper", "gaming")

	testhelpers.AssertNoEventMatching(t, observer, reconnectWindow+time.Second, func(event map[string]interface{}) bool {
		return event["type"] == "system" && strings.Contains(testhelpers.EventText(event), "hopper")
	})
}
