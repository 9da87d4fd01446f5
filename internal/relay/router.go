package relay

import "strings"

// Router tracks each session's current room and computes broadcast target
// sets. Target computation is one selection pass parameterized by an inclusion
// predicate; room broadcasts and profile broadcasts differ only in the
// predicate they pass.
type Router struct {
	registry    *Registry
	defaultRoom string
}

// NewRouter creates a router enumerating sessions from the given registry.
func NewRouter(registry *Registry, defaultRoom string) *Router {
	if defaultRoom == "" {
		defaultRoom = "public"
	}
	return &Router{registry: registry, defaultRoom: defaultRoom}
}

// DefaultRoom returns the meeting code sessions start in.
func (r *Router) DefaultRoom() string {
	return r.defaultRoom
}

// Normalize trims the meeting code and maps blank to the default room.
func (r *Router) Normalize(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return r.defaultRoom
	}
	return code
}

// SetRoom switches the session to a meeting code, leaving DM mode if active,
// and returns the previous code so the caller can emit leave/join broadcasts.
func (r *Router) SetRoom(s *Session, code string) (prev string) {
	return s.setRoom(r.Normalize(code))
}

// EnterDM puts the session in DM mode with the given partner. The stored room
// code is not altered, so returning to room mode restores the last room.
func (r *Router) EnterDM(s *Session, partner string) {
	s.enterDM(partner)
}

// ExitDM returns the session to room mode.
func (r *Router) ExitDM(s *Session) {
	s.exitDM()
}

// RoomTargets returns the sessions eligible for an ordinary room broadcast:
// current room equals code and not in DM mode.
func (r *Router) RoomTargets(code string) []*Session {
	return r.targets(func(s *Session) bool { return s.inRoom(code) })
}

// ProfileTargets returns the sessions eligible for a profile-update broadcast:
// current room equals code, DM mode included. Users who stepped into a DM view
// remain logically present in their room and must see profile changes.
func (r *Router) ProfileTargets(code string) []*Session {
	return r.targets(func(s *Session) bool { return s.roomMatches(code) })
}

// targets snapshots the candidate set before the caller sends anything, so a
// concurrent join or leave during fan-out neither double-delivers nor breaks
// iteration.
func (r *Router) targets(include func(*Session) bool) []*Session {
	var out []*Session
	for _, s := range r.registry.Sessions() {
		if s.Conn().Open() && include(s) {
			out = append(out, s)
		}
	}
	return out
}
