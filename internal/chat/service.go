// Package chat wires the room registry, message history, session store,
// and presence policy into the three connection-event entry points: join,
// message, and disconnect.
package chat

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"
)

// Broadcaster delivers serialized events to connections. Implemented by
// the transport hub; room targeting is computed here from the session
// table. For a single connection, payloads are delivered in the order they
// were handed over.
type Broadcaster interface {
	Send(connID string, payload []byte)
	SendAll(payload []byte)
}

// Options carries the tunable limits and the disconnect-status policy.
type Options struct {
	MaxMessageLength  int
	MaxUsernameLength int

	// ImmediateStatusFlip marks a user disconnected as soon as their last
	// session drops instead of waiting for the grace window to elapse. The
	// leave notice itself is always deferred.
	ImmediateStatusFlip bool
}

// Service validates inbound events, drives the presence policy, mutates
// the stores, and emits outbound notifications. Validation always precedes
// any state change, so a rejected event leaves the process state untouched.
type Service struct {
	registry *Registry
	history  *History
	sessions *SessionStore
	presence *Presence
	out      Broadcaster
	opts     Options
	now      func() time.Time
}

// NewService assembles a Service from its collaborators.
func NewService(registry *Registry, history *History, sessions *SessionStore, presence *Presence, out Broadcaster, opts Options) *Service {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 500
	}
	if opts.MaxUsernameLength <= 0 {
		opts.MaxUsernameLength = 50
	}
	return &Service{
		registry: registry,
		history:  history,
		sessions: sessions,
		presence: presence,
		out:      out,
		opts:     opts,
		now:      time.Now,
	}
}

// Sessions exposes the session store for read-only query routes.
func (s *Service) Sessions() *SessionStore {
	return s.sessions
}

// Registry exposes the room registry for read-only query routes.
func (s *Service) Registry() *Registry {
	return s.registry
}

// HandleJoin processes a join request for a connection. It validates the
// username and room, classifies the join, updates the session and rosters,
// replays room history to the joiner, and broadcasts the affected rosters.
// A "joined the chat" notice goes to the global room only on a first join.
func (s *Service) HandleJoin(connID string, req JoinRequest) {
	defer s.trapPanic(connID, "join")

	username, room, err := s.validateJoin(req)
	if err != nil {
		s.sendError(connID, err.Error())
		return
	}

	if existing, hadSession := s.sessions.Get(connID); hadSession && existing.Username == username {
		s.switchRoom(connID, existing, room)
		return
	} else if hadSession {
		// The connection re-joined under a new identity; retire the old
		// session through the normal departure path.
		s.retireSession(connID)
	}

	class := s.presence.ClassifyJoin(username)
	if class.QuickReconnect {
		s.sessions.ConsumeDeparture(username)
	}

	s.sessions.AddSession(connID, username, room)
	s.sessions.SetGlobalStatus(username, StatusConnected)

	log.Printf("User %s joined room %s (connection: %s)", username, room, connID)

	s.sendHistory(connID, room)
	s.broadcastRoomRoster(room)
	s.broadcastGlobalRoster()

	if class.FirstJoin {
		s.emitSystemNotice(fmt.Sprintf("System: %s joined the chat", username), username)
	}
}

// validateJoin checks the username and resolves the requested room, falling
// back to the default room when none is given.
func (s *Service) validateJoin(req JoinRequest) (string, string, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return "", "", &ValidationError{Reason: "Username is required"}
	}
	if utf8.RuneCountInString(username) > s.opts.MaxUsernameLength {
		return "", "", &ValidationError{Reason: fmt.Sprintf("Username exceeds maximum length of %d characters", s.opts.MaxUsernameLength)}
	}

	requested := req.Room
	if strings.TrimSpace(requested) == "" {
		requested = s.registry.DefaultRoom()
	}
	room, valid := s.registry.Validate(requested)
	if !valid {
		return "", "", &ValidationError{Reason: fmt.Sprintf("Invalid room. Available rooms: %s", strings.Join(s.registry.All(), ", "))}
	}
	return username, room, nil
}

// switchRoom moves an existing session to a new room. Only rosters update;
// no join or leave notice fires.
func (s *Service) switchRoom(connID string, existing Session, room string) {
	oldRoom, moved := s.sessions.MoveSession(connID, room)
	if !moved {
		return
	}
	s.sessions.SetGlobalStatus(existing.Username, StatusConnected)

	log.Printf("User %s switched from room %s to %s (connection: %s)", existing.Username, oldRoom, room, connID)

	s.sendHistory(connID, room)
	if oldRoom != room {
		s.broadcastRoomRoster(oldRoom)
	}
	s.broadcastRoomRoster(room)
	s.broadcastGlobalRoster()
}

// retireSession tears down a connection's current session as if it had
// disconnected, including opening a departure for an abandoned username.
func (s *Service) retireSession(connID string) {
	removed, hasOther := s.presence.OnDisconnect(connID, s.confirmDeparture)
	if removed == nil {
		return
	}
	s.broadcastRoomRoster(removed.Room)
	if hasOther {
		s.broadcastGlobalRoster()
	}
}

// HandleMessage processes a chat message from a connection with an
// established session, appends it to the room history, and broadcasts it
// to every connection currently in that room.
func (s *Service) HandleMessage(connID string, req MessageRequest) {
	defer s.trapPanic(connID, "message")

	session, text, err := s.validateMessage(connID, req)
	if err != nil {
		s.sendError(connID, err.Error())
		return
	}

	msg := Message{
		Type:      EventMessage,
		Username:  session.Username,
		Text:      text,
		Timestamp: s.now().UTC(),
		Room:      session.Room,
	}

	s.history.Append(session.Room, msg)
	s.broadcastRoom(session.Room, msg)

	log.Printf("Message from %s in %s: %s", session.Username, session.Room, text)
}

// validateMessage requires an established session and well-formed text.
func (s *Service) validateMessage(connID string, req MessageRequest) (Session, string, error) {
	session, joined := s.sessions.Get(connID)
	if !joined {
		return Session{}, "", &ProtocolError{Reason: "You must join a room first"}
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Session{}, "", &ValidationError{Reason: "Message text is required"}
	}
	if utf8.RuneCountInString(text) > s.opts.MaxMessageLength {
		return Session{}, "", &ValidationError{Reason: fmt.Sprintf("Message exceeds maximum length of %d characters", s.opts.MaxMessageLength)}
	}
	return session, text, nil
}

// HandleDisconnect processes a transport-level disconnect. The vacated
// room's roster updates immediately; the global roster change and the
// leave notice wait for the grace window unless other sessions remain.
func (s *Service) HandleDisconnect(connID string) {
	defer s.trapPanic(connID, "disconnect")

	removed, hasOther := s.presence.OnDisconnect(connID, s.confirmDeparture)
	if removed == nil {
		log.Printf("Client disconnected before joining (connection: %s)", connID)
		return
	}

	log.Printf("User %s disconnected from room %s (connection: %s)", removed.Username, removed.Room, connID)

	s.broadcastRoomRoster(removed.Room)

	if hasOther {
		// Presence is per-username; another device keeps the user online.
		s.broadcastGlobalRoster()
		return
	}

	if s.opts.ImmediateStatusFlip {
		s.sessions.SetGlobalStatus(removed.Username, StatusDisconnected)
		s.broadcastGlobalRoster()
	}
}

// confirmDeparture runs when a grace-window timer fires. It re-checks
// presence and atomically consumes the pending departure; if the user
// reconnected in the interim this is a no-op. It runs on the timer's own
// goroutine, so a panic here must be contained or it kills the process.
func (s *Service) confirmDeparture(username string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic confirming departure of %s: %v", username, r)
		}
	}()

	if s.sessions.IsPresentInAnyRoom(username) {
		// Re-joined after the window had already elapsed; no notice, but
		// the stale record must still be cleared.
		s.sessions.ConsumeDeparture(username)
		return
	}
	if !s.sessions.ConsumeDeparture(username) {
		return
	}

	if !s.opts.ImmediateStatusFlip {
		s.sessions.SetGlobalStatus(username, StatusDisconnected)
	}

	log.Printf("User %s left the chat (grace window elapsed)", username)

	s.emitSystemNotice(fmt.Sprintf("System: %s left the chat", username), username)
	s.broadcastGlobalRoster()
}

// emitSystemNotice persists a system message to the global room's history
// and broadcasts it to every connection.
func (s *Service) emitSystemNotice(text, username string) {
	globalRoom := s.registry.GlobalRoom()
	notice := Message{
		Type:      EventSystem,
		Username:  username,
		Text:      text,
		Timestamp: s.now().UTC(),
		Room:      globalRoom,
	}
	s.history.Append(globalRoom, notice)
	s.broadcastAll(notice)
}

func (s *Service) sendHistory(connID, room string) {
	s.sendEvent(connID, HistoryEvent{
		Type:     EventHistory,
		Messages: s.history.Messages(room),
		Room:     room,
	})
}

func (s *Service) broadcastRoomRoster(room string) {
	s.broadcastRoom(room, RoomUsersEvent{
		Type:  EventUsers,
		Users: s.sessions.RoomRoster(room),
		Room:  room,
	})
}

func (s *Service) broadcastGlobalRoster() {
	s.broadcastAll(AllUsersEvent{
		Type:  EventAllUsers,
		Users: s.sessions.GlobalRoster(),
	})
}

func (s *Service) sendError(connID, message string) {
	s.sendEvent(connID, ErrorEvent{Type: EventError, Message: message})
}

func (s *Service) sendEvent(connID string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling event for connection %s: %v", connID, err)
		return
	}
	s.out.Send(connID, payload)
}

func (s *Service) broadcastRoom(room string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling broadcast for room %s: %v", room, err)
		return
	}
	for _, connID := range s.sessions.RoomConnections(room) {
		s.out.Send(connID, payload)
	}
}

func (s *Service) broadcastAll(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling broadcast: %v", err)
		return
	}
	s.out.SendAll(payload)
}

// trapPanic keeps an unexpected handler failure from crashing the process
// or reaching the transport layer. The error report goes through the same
// broadcaster that may have just panicked, so it is guarded too.
func (s *Service) trapPanic(connID, handler string) {
	if r := recover(); r != nil {
		log.Printf("Recovered from panic in %s handler for connection %s: %v", handler, connID, r)
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Failed to report %s failure to connection %s: %v", handler, connID, r)
			}
		}()
		s.sendError(connID, fmt.Sprintf("Failed to process %s request", handler))
	}
}
