package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/heartline-app/relay-server/internal/auth"
	"github.com/heartline-app/relay-server/internal/store"
)

// fakeConn records frames sent to it and honors the Conn contract: sends
// after close are dropped silently.
type fakeConn struct {
	id string

	mu     sync.Mutex
	frames []string
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.frames = append(c.frames, frame)
}

func (c *fakeConn) Close(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeConn) drain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

func (c *fakeConn) hasFrame(t *testing.T, prefix string) string {
	t.Helper()
	for _, f := range c.sent() {
		if strings.HasPrefix(f, prefix) {
			return f
		}
	}
	t.Fatalf("conn %s: no frame with prefix %q in %v", c.id, prefix, c.sent())
	return ""
}

func (c *fakeConn) lacksFrame(t *testing.T, prefix string) {
	t.Helper()
	for _, f := range c.sent() {
		if strings.HasPrefix(f, prefix) {
			t.Fatalf("conn %s: unexpected frame %q", c.id, f)
		}
	}
}

// fakeStore is an in-memory identity and history store. Credentials are kept
// as plain strings; fakeAuth compares them directly.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[string]*store.User
	messages []*store.Message
	saveErr  error
	histErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*store.User)}
}

func (f *fakeStore) CreateUser(_ context.Context, username, email, passwordHash string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			return nil, store.ErrDuplicate
		}
	}
	f.nextID++
	user := &store.User{
		ID:           f.nextID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	f.users[username] = user
	return user, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (f *fakeStore) UpdateAvatarURL(_ context.Context, userID int64, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userID {
			u.AvatarURL = url
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) UpdateBio(_ context.Context, userID int64, bio string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == userID {
			u.Bio = bio
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) SaveMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.nextID++
	msg.ID = f.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	clone := *msg
	f.messages = append(f.messages, &clone)
	return nil
}

func (f *fakeStore) RoomHistory(_ context.Context, meetingCode string, limit int) ([]store.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []store.HistoryEntry
	for _, m := range f.messages {
		if m.MeetingCode == meetingCode && m.ReceiverID == nil {
			entries = append(entries, f.entryLocked(m))
		}
	}
	return tail(entries, limit), nil
}

func (f *fakeStore) DirectHistory(_ context.Context, userID1, userID2 int64, limit int) ([]store.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.histErr != nil {
		return nil, f.histErr
	}
	var entries []store.HistoryEntry
	for _, m := range f.messages {
		if m.MeetingCode != store.DirectCode || m.ReceiverID == nil {
			continue
		}
		if (m.SenderID == userID1 && *m.ReceiverID == userID2) ||
			(m.SenderID == userID2 && *m.ReceiverID == userID1) {
			entries = append(entries, f.entryLocked(m))
		}
	}
	return tail(entries, limit), nil
}

func (f *fakeStore) entryLocked(m *store.Message) store.HistoryEntry {
	sender := "unknown"
	for _, u := range f.users {
		if u.ID == m.SenderID {
			sender = u.Username
			break
		}
	}
	return store.HistoryEntry{SenderUsername: sender, Content: m.Content, Timestamp: m.CreatedAt}
}

func (f *fakeStore) setSaveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

func (f *fakeStore) setHistErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histErr = err
}

func (f *fakeStore) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func (f *fakeStore) lastMessage() *store.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	clone := *f.messages[len(f.messages)-1]
	return &clone
}

func tail(entries []store.HistoryEntry, limit int) []store.HistoryEntry {
	if len(entries) > limit {
		return entries[len(entries)-limit:]
	}
	return entries
}

// fakeAuth skips bcrypt: the stored hash is the password itself.
type fakeAuth struct {
	store *fakeStore
}

func (a *fakeAuth) Register(ctx context.Context, username, password, email string) error {
	if _, err := a.store.CreateUser(ctx, username, email, password); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return auth.ErrUserExists
		}
		return err
	}
	return nil
}

func (a *fakeAuth) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	u, err := a.store.GetUserByUsername(ctx, username)
	if err != nil || u.PasswordHash != password {
		return nil, auth.ErrInvalidCredentials
	}
	return u, nil
}

// newTestEngine wires an engine over fakes with history limit 50.
func newTestEngine(t *testing.T) (*Engine, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	registry := NewRegistry()
	router := NewRouter(registry, "public")
	logger := zerolog.Nop()
	return NewEngine(registry, router, &fakeAuth{store: fs}, fs, fs, 50, &logger), fs
}

// login registers (if needed) and authenticates a user on a fresh connection,
// returning its session with the welcome frames drained.
func login(t *testing.T, e *Engine, fs *fakeStore, username string) (*Session, *fakeConn) {
	t.Helper()
	ctx := context.Background()
	if _, err := fs.GetUserByUsername(ctx, username); err != nil {
		if _, err := fs.CreateUser(ctx, username, username+"@x.com", "pw1"); err != nil {
			t.Fatalf("seed user %s: %v", username, err)
		}
	}

	conn := newFakeConn("conn-" + username)
	s := e.Open(conn)
	e.Handle(ctx, s, "LOGIN:"+username+":pw1")
	conn.hasFrame(t, "LOGIN_SUCCESS:")
	conn.drain()
	return s, conn
}
