package relay

import "sync"

// Session binds a connection to an authenticated identity plus its routing
// state: the current meeting code and, when set, a direct-message partner.
// A session is in exactly one of two modes: room mode (receives broadcasts for
// its meeting code) or DM mode (partner set, excluded from room broadcasts).
// Entering DM mode keeps the stored room code so leaving DM restores it.
type Session struct {
	conn Conn

	mu       sync.Mutex
	username string
	userID   int64
	room     string
	partner  string // DM partner; "" means room mode
}

// Conn returns the underlying transport handle.
func (s *Session) Conn() Conn {
	return s.conn
}

// Send queues one frame on the session's connection, best-effort.
func (s *Session) Send(frame string) {
	s.conn.Send(frame)
}

// Authenticated reports whether login has completed on this session.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username != ""
}

// Username returns the authenticated username, or "" before login.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// UserID returns the authenticated numeric identity.
func (s *Session) UserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Room returns the current meeting code.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// DMPartner returns the DM partner and whether the session is in DM mode.
func (s *Session) DMPartner() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partner, s.partner != ""
}

func (s *Session) bind(username string, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.userID = userID
}

// setRoom records the new meeting code, clears DM mode, and returns the
// previous code.
func (s *Session) setRoom(code string) (prev string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev = s.room
	s.room = code
	s.partner = ""
	return prev
}

// enterDM sets the DM partner. The room code is retained for later return.
func (s *Session) enterDM(partner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partner = partner
}

func (s *Session) exitDM() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partner = ""
}

// inRoom reports whether the session currently receives ordinary broadcasts
// for code: the meeting code matches and the session is not in DM mode.
func (s *Session) inRoom(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room == code && s.partner == ""
}

// roomMatches reports whether the session's meeting code equals code,
// regardless of DM mode. Profile broadcasts use this wider predicate.
func (s *Session) roomMatches(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room == code
}
