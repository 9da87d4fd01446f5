package relay

import "sync"

// Profile is the cached avatar/bio pair attached to broadcasts. The identity
// store remains the source of truth; the cache exists so fan-out never hits it.
type Profile struct {
	Avatar string
	Bio    string
}

// Registry tracks live authenticated sessions and their cached profiles.
// All operations are internally synchronized; multi-step sequences such as
// evict-then-install run under one critical section per username so two
// simultaneous logins of the same username cannot lose an update.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	profiles map[string]Profile
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		profiles: make(map[string]Profile),
	}
}

// Register installs the session under its username, caching the profile.
// An existing session for the same username is notified via notice, forcibly
// closed, and returned; eviction and installation are atomic with respect to
// concurrent registrations of the same username.
func (r *Registry) Register(s *Session, p Profile, notice string) (evicted *Session) {
	username := s.Username()

	r.mu.Lock()
	defer r.mu.Unlock()

	if old := r.sessions[username]; old != nil && old != s {
		// Conn sends and closes never block, so notifying inside the
		// critical section keeps the whole sequence exclusive per username.
		if notice != "" {
			old.Send(notice)
		}
		old.Conn().Close(CloseReasonEvicted)
		evicted = old
	}

	r.sessions[username] = s
	r.profiles[username] = p
	return evicted
}

// Unregister removes the username mapping, but only while it still points at
// this session: an evicted connection closing late must not tear down its
// replacement. Reports whether the mapping (and cached profile) was removed.
func (r *Registry) Unregister(username string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[username] != s {
		return false
	}
	delete(r.sessions, username)
	delete(r.profiles, username)
	return true
}

// Lookup returns the live session for a username, or nil.
func (r *Registry) Lookup(username string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[username]
}

// Sessions returns a snapshot of all registered sessions. Entries whose
// connection has closed since the snapshot are tolerated; sends to them are
// no-ops.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	return snapshot
}

// Profile returns the cached profile for a username.
func (r *Registry) Profile(username string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[username]
	return p, ok
}

// SetAvatar updates the cached avatar URL for a username.
func (r *Registry) SetAvatar(username, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.profiles[username]
	p.Avatar = url
	r.profiles[username] = p
}

// SetBio updates the cached bio for a username.
func (r *Registry) SetBio(username, bio string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.profiles[username]
	p.Bio = bio
	r.profiles[username] = p
}
