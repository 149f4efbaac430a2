// Package server implements the HTTP and WebSocket transport for RoomChat.
//
// The implementation is organized into specialized files for configuration,
// hub management, clients, routing, and HTTP handlers. The presence and
// session-tracking engine itself lives in internal/chat; this package only
// moves frames between connections and that engine.
package server
