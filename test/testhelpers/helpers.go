// Package testhelpers provides common utilities and helper functions for testing the RoomChat server.
//
// This package contains reusable test utilities that are shared across integration tests.
// It provides functions for creating test servers, making HTTP requests, driving the chat
// protocol over WebSocket connections, and asserting response properties to reduce code
// duplication in test files.
package testhelpers

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
// It fails the test with a descriptive error message if the status codes don't match.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
// It fails the test with a descriptive error message if the content types don't match.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket creates a WebSocket connection to the specified URL using
// the default test origin. It returns the connection or an error if the
// connection fails.
func ConnectWebSocket(url string) (*websocket.Conn, error) {
	return ConnectWebSocketWithOrigin(url, "http://localhost:8080")
}

// ConnectWebSocketWithOrigin creates a WebSocket connection with an explicit
// Origin header, for exercising the origin allow-list.
func ConnectWebSocketWithOrigin(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendJoin sends a join request for the given username and room over the
// WebSocket connection.
func SendJoin(conn *websocket.Conn, username, room string) error {
	return conn.WriteJSON(map[string]string{
		"type":     "join",
		"username": username,
		"room":     room,
	})
}

// SendChatMessage sends a chat message over the WebSocket connection.
func SendChatMessage(conn *websocket.Conn, text string) error {
	return conn.WriteJSON(map[string]string{
		"type": "message",
		"text": text,
	})
}

// SendRawMessage sends a raw byte message over the WebSocket connection.
func SendRawMessage(conn *websocket.Conn, messageType int, data []byte) error {
	return conn.WriteMessage(messageType, data)
}

// ReceiveEvent reads one JSON event from the WebSocket connection, waiting at
// most the given timeout.
func ReceiveEvent(conn *websocket.Conn, timeout time.Duration) (map[string]interface{}, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	var event map[string]interface{}
	err := conn.ReadJSON(&event)
	return event, err
}

// WaitForEvent reads events from the connection until one with the given type
// arrives, failing the test if the deadline passes first. Events of other
// types are discarded.
func WaitForEvent(t *testing.T, conn *websocket.Conn, eventType string, timeout time.Duration) map[string]interface{} {
	t.Helper()
	return WaitForEventMatching(t, conn, timeout, func(event map[string]interface{}) bool {
		return event["type"] == eventType
	})
}

// WaitForEventMatching reads events from the connection until one satisfies
// the predicate, failing the test if the deadline passes first.
func WaitForEventMatching(t *testing.T, conn *websocket.Conn, timeout time.Duration, match func(map[string]interface{}) bool) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("Timed out waiting for matching event")
		}
		event, err := ReceiveEvent(conn, remaining)
		if err != nil {
			t.Fatalf("Failed to read event while waiting: %v", err)
		}
		if match(event) {
			return event
		}
	}
}

// AssertNoEventMatching reads events from the connection for the given
// duration and fails the test if any satisfies the predicate. Read timeouts
// are expected and end the watch.
func AssertNoEventMatching(t *testing.T, conn *websocket.Conn, window time.Duration, match func(map[string]interface{}) bool) {
	t.Helper()

	deadline := time.Now().Add(window)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		event, err := ReceiveEvent(conn, remaining)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				return
			}
			t.Fatalf("Unexpected error while watching for events: %v", err)
		}
		if match(event) {
			t.Fatalf("Received an event that should not have arrived: %v", event)
		}
	}
}

// EventText extracts the text field of an event, or an empty string.
func EventText(event map[string]interface{}) string {
	text, _ := event["text"].(string)
	return text
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// CreateJSONEvent JSON-encodes an arbitrary event payload for raw sends.
func CreateJSONEvent(t *testing.T, event map[string]string) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Failed to marshal event: %v", err)
	}
	return payload
}
