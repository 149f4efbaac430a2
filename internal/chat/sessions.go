// Package chat tracks live sessions, room rosters, the global user roster,
// and pending-departure timers behind a single mutex-guarded store. The
// session table is the one source of truth for who is connected as whom,
// and where.
package chat

import (
	"sort"
	"sync"
	"time"
)

// Session is one live (connection, username, room) binding. Multiple
// sessions may share a username (multi-device login) and a room.
type Session struct {
	ConnID   string
	Username string
	Room     string
}

type globalUser struct {
	status   string
	lastSeen time.Time
}

// pendingDeparture is open only during the grace window after a username's
// last session dropped. The timer handle lives under the same key it
// cancels so cancellation and firing can never both apply.
type pendingDeparture struct {
	disconnectedAt time.Time
	timer          *time.Timer
}

// SessionStore is the authoritative bookkeeping for sessions, rosters,
// global status, and departure timers. All operations are safe for
// concurrent use; each mapping update is atomic under the store mutex.
type SessionStore struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	roomUsers  map[string]map[string]struct{}
	allUsers   map[string]*globalUser
	departures map[string]*pendingDeparture
	now        func() time.Time
}

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:   make(map[string]*Session),
		roomUsers:  make(map[string]map[string]struct{}),
		allUsers:   make(map[string]*globalUser),
		departures: make(map[string]*pendingDeparture),
		now:        time.Now,
	}
}

// AddSession inserts or overwrites the session for a connection and adds
// the username to the room's roster. Calling it twice with identical
// arguments is a no-op.
func (s *SessionStore) AddSession(connID, username, room string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[connID] = &Session{ConnID: connID, Username: username, Room: room}
	s.addToRosterLocked(room, username)
}

// RemoveSession deletes the session for a connection and returns the
// removed tuple, or nil if the connection had no session (disconnect before
// join). The username leaves the room roster only when no other session
// keeps it there.
func (s *SessionStore) RemoveSession(connID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[connID]
	if !exists {
		return nil
	}
	delete(s.sessions, connID)

	if !s.hasSessionInRoomLocked(session.Username, session.Room) {
		s.removeFromRosterLocked(session.Room, session.Username)
	}
	return session
}

// MoveSession switches a connection's session to a new room without
// destroying it, applying the last-session rule to the old room's roster.
// It returns the vacated room, or false if the connection has no session.
func (s *SessionStore) MoveSession(connID, newRoom string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[connID]
	if !exists {
		return "", false
	}

	oldRoom := session.Room
	session.Room = newRoom

	if !s.hasSessionInRoomLocked(session.Username, oldRoom) {
		s.removeFromRosterLocked(oldRoom, session.Username)
	}
	s.addToRosterLocked(newRoom, session.Username)

	return oldRoom, true
}

// Get returns a copy of the session bound to a connection.
func (s *SessionStore) Get(connID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[connID]
	if !exists {
		return Session{}, false
	}
	return *session, true
}

// HasAnySessionFor reports whether any live session, in any room, belongs
// to the username. Used to distinguish genuine departure from closing one
// of several devices.
func (s *SessionStore) HasAnySessionFor(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, session := range s.sessions {
		if session.Username == username {
			return true
		}
	}
	return false
}

// IsPresentInAnyRoom reports whether the username appears in any room
// roster. Rosters aggregate by username across devices, so this is
// distinct from HasAnySessionFor.
func (s *SessionStore) IsPresentInAnyRoom(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, users := range s.roomUsers {
		if _, present := users[username]; present {
			return true
		}
	}
	return false
}

// RoomRoster returns the sorted usernames currently present in a room.
func (s *SessionStore) RoomRoster(room string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]string, 0, len(s.roomUsers[room]))
	for username := range s.roomUsers[room] {
		users = append(users, username)
	}
	sort.Strings(users)
	return users
}

// RoomConnections returns the connection ids of every session currently in
// the room, for broadcast fan-out.
func (s *SessionStore) RoomConnections(room string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conns []string
	for connID, session := range s.sessions {
		if session.Room == room {
			conns = append(conns, connID)
		}
	}
	return conns
}

// SetGlobalStatus upserts the username's entry in the global roster,
// stamping lastSeen. Entries are created on first join and never deleted,
// only toggled.
func (s *SessionStore) SetGlobalStatus(username, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.allUsers[username]
	if !exists {
		user = &globalUser{}
		s.allUsers[username] = user
	}
	user.status = status
	user.lastSeen = s.now()
}

// GlobalRoster returns a snapshot of every username ever seen with its
// current status, sorted by username for stable output.
func (s *SessionStore) GlobalRoster() []UserStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]UserStatus, 0, len(s.allUsers))
	for username, user := range s.allUsers {
		users = append(users, UserStatus{
			Username: username,
			Status:   user.status,
			LastSeen: user.lastSeen,
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

// OpenDeparture records a pending departure for the username, replacing and
// cancelling any pre-existing one. At most one pending timer exists per
// username.
func (s *SessionStore) OpenDeparture(username string, timer *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, exists := s.departures[username]; exists && existing.timer != nil {
		existing.timer.Stop()
	}
	s.departures[username] = &pendingDeparture{
		disconnectedAt: s.now(),
		timer:          timer,
	}
}

// ConsumeDeparture cancels and deletes the username's pending departure,
// reporting whether one existed. A true result means the disconnect was a
// reload and the leave notice must be suppressed. The check-and-delete is
// atomic, so a consumed departure can never also fire.
func (s *SessionStore) ConsumeDeparture(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	departure, exists := s.departures[username]
	if !exists {
		return false
	}
	if departure.timer != nil {
		departure.timer.Stop()
	}
	delete(s.departures, username)
	return true
}

// PeekDeparture returns the disconnect timestamp of the username's pending
// departure without consuming it.
func (s *SessionStore) PeekDeparture(username string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	departure, exists := s.departures[username]
	if !exists {
		return time.Time{}, false
	}
	return departure.disconnectedAt, true
}

func (s *SessionStore) addToRosterLocked(room, username string) {
	users, exists := s.roomUsers[room]
	if !exists {
		users = make(map[string]struct{})
		s.roomUsers[room] = users
	}
	users[username] = struct{}{}
}

func (s *SessionStore) removeFromRosterLocked(room, username string) {
	if users, exists := s.roomUsers[room]; exists {
		delete(users, username)
	}
}

func (s *SessionStore) hasSessionInRoomLocked(username, room string) bool {
	for _, session := range s.sessions {
		if session.Username == username && session.Room == room {
			return true
		}
	}
	return false
}
