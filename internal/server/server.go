// Package server constructs and starts the RoomChat HTTP service and wires
// the presence engine into the connection hub.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
)

var (
	hub         = NewHub()
	chatService *chat.Service
	hubOnce     sync.Once
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartHub builds the chat service from the active configuration, attaches
// it to the global hub, and starts the hub in a separate goroutine. This
// should be called after SetConfig and before starting the HTTP server.
// Repeated calls are no-ops.
func StartHub() {
	hubOnce.Do(func() {
		cfg := currentConfig()

		registry := chat.NewRegistry(cfg.Chat.Rooms, cfg.Chat.GlobalRoom, cfg.Chat.DefaultRoom)
		history := chat.NewHistory(cfg.Chat.HistoryLimit)
		sessions := chat.NewSessionStore()
		presence := chat.NewPresence(sessions, cfg.Chat.ReconnectWindow)

		chatService = chat.NewService(registry, history, sessions, presence, hub, chat.Options{
			MaxMessageLength:    cfg.Chat.MaxMessageLength,
			MaxUsernameLength:   cfg.Chat.MaxUsernameLength,
			ImmediateStatusFlip: cfg.Chat.DisconnectStatus == DisconnectStatusImmediate,
		})
		hub.SetService(chatService)

		go hub.Run()
		log.Println("Hub started and ready to manage WebSocket connections")
	})
}

// StartServer starts the HTTP server and begins listening for connections.
// It returns an error if the server fails to start.
func StartServer(server *http.Server) error {
	fmt.Printf("Server listening on port %s\n", server.Addr)
	return server.ListenAndServe()
}

// ShutdownServer gracefully shuts down the HTTP server without interrupting active connections.
// It waits for active connections to close or until the timeout is reached.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	log.Println("Shutting down HTTP server...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		return err
	}

	log.Println("HTTP server shutdown completed")
	return nil
}

// GetHub returns the global hub instance for shutdown coordination
func GetHub() *Hub {
	return hub
}
