// Package chat implements the presence policy: classifying each join as a
// first join, a room switch, or a quick reconnect, and confirming genuine
// departures after the grace window.
package chat

import "time"

// JoinClass is the outcome of classifying a join request.
type JoinClass struct {
	FirstJoin      bool
	QuickReconnect bool
}

// Presence decides how joins and disconnects translate into presence
// changes. Join and leave notices must fire at most once per genuine
// connect/disconnect cycle, never on room switches and never on a
// same-device reload.
type Presence struct {
	store  *SessionStore
	window time.Duration
	now    func() time.Time
}

// NewPresence creates a Presence policy over the given store with the
// configured reconnect grace window.
func NewPresence(store *SessionStore, window time.Duration) *Presence {
	return &Presence{
		store:  store,
		window: window,
		now:    time.Now,
	}
}

// Window returns the reconnect grace window.
func (p *Presence) Window() time.Duration {
	return p.window
}

// ClassifyJoin classifies a join for the username before any state is
// mutated. A quick reconnect is a join arriving while a pending departure
// is still inside the grace window; a first join is a username present
// nowhere that is not quick-reconnecting.
func (p *Presence) ClassifyJoin(username string) JoinClass {
	quick := false
	if disconnectedAt, pending := p.store.PeekDeparture(username); pending {
		quick = p.now().Sub(disconnectedAt) < p.window
	}

	return JoinClass{
		FirstJoin:      !p.store.IsPresentInAnyRoom(username) && !quick,
		QuickReconnect: quick,
	}
}

// OnDisconnect removes the connection's session and reports whether the
// username still has other live sessions. When none remain, a pending
// departure is opened and confirm is scheduled to run after the grace
// window; a timely reconnect consumes the departure and the scheduled call
// degrades to a no-op.
func (p *Presence) OnDisconnect(connID string, confirm func(username string)) (*Session, bool) {
	removed := p.store.RemoveSession(connID)
	if removed == nil {
		return nil, false
	}

	hasOther := p.store.HasAnySessionFor(removed.Username)
	if !hasOther {
		username := removed.Username
		timer := time.AfterFunc(p.window, func() { confirm(username) })
		p.store.OpenDeparture(username, timer)
	}
	return removed, hasOther
}
