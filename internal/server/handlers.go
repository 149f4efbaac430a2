// Package server exposes HTTP handlers, including WebSocket upgrades,
// health checks, read-only presence queries, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler handles WebSocket upgrade requests and manages client connections.
// It validates that the request uses the GET method, upgrades the HTTP connection
// to WebSocket, creates a new Client instance, and registers it with the hub.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(conn, hub, r.RemoteAddr)

	// Register the client with the hub; the hub will launch the pump goroutines.
	client.hub.register <- client
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "RoomChat server is running!")
}

// RoomsHandler returns the fixed set of valid room identifiers as JSON.
func RoomsHandler(w http.ResponseWriter, _ *http.Request) {
	service := chatService
	if service == nil {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]any{"rooms": service.Registry().All()})
}

// UsersHandler returns the global user roster with per-user status as JSON.
func UsersHandler(w http.ResponseWriter, _ *http.Request) {
	service := chatService
	if service == nil {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]any{"users": service.Sessions().GlobalRoster()})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

// TestPageHandler serves an HTML test page for exercising the chat
// protocol: join a room, send messages, and watch roster updates.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	html := `<!DOCTYPE html>
<html>
<head>
    <title>RoomChat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
    </style>
</head>
<body>
    <h1>RoomChat Test</h1>
    <div>
        <input type="text" id="username" placeholder="Username">
        <input type="text" id="room" placeholder="Room (default: general)">
        <button onclick="join()">Join</button>
    </div>
    <div>
        <input type="text" id="text" placeholder="Type a message...">
        <button onclick="send()">Send</button>
    </div>
    <div id="events"></div>
    <script>
        let ws = null;
        const events = document.getElementById('events');

        function show(line) {
            const el = document.createElement('div');
            el.textContent = line;
            events.appendChild(el);
            events.scrollTop = events.scrollHeight;
        }

        function connect() {
            ws = new WebSocket('ws://' + location.host + '/ws');
            ws.onopen = () => show('connected');
            ws.onclose = () => { show('disconnected'); ws = null; };
            ws.onmessage = (e) => show(e.data);
        }

        function join() {
            if (!ws) connect();
            const doJoin = () => ws.send(JSON.stringify({
                type: 'join',
                username: document.getElementById('username').value,
                room: document.getElementById('room').value
            }));
            ws.readyState === WebSocket.OPEN ? doJoin() : ws.addEventListener('open', doJoin);
        }

        function send() {
            if (!ws) return;
            ws.send(JSON.stringify({ type: 'message', text: document.getElementById('text').value }));
            document.getElementById('text').value = '';
        }

        document.getElementById('text').addEventListener('keypress', (e) => {
            if (e.key === 'Enter') send();
        });
    </script>
</body>
</html>`
	if _, err := fmt.Fprint(w, html); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}
