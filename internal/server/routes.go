// Package server wires HTTP handlers into a ServeMux for the RoomChat
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// It sets up handlers for the health check, WebSocket endpoint, presence
// queries, and the test page.
func SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler)
	mux.HandleFunc("/rooms", RoomsHandler)
	mux.HandleFunc("/users", UsersHandler)
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}
