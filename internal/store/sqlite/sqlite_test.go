package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/heartline-app/relay-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedUser(t *testing.T, s *SQLiteStore, username string) *store.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), username, username+"@example.com", "hash")
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u
}

func TestCreateUserDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, "alice", "alice@example.com", "hash"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	if _, err := s.CreateUser(ctx, "alice", "other@example.com", "hash"); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate username: expected ErrDuplicate, got %v", err)
	}
	if _, err := s.CreateUser(ctx, "alice2", "alice@example.com", "hash"); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("duplicate email: expected ErrDuplicate, got %v", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := seedUser(t, s, "alice")

	u, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if u.ID != created.ID || u.Email != "alice@example.com" || u.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %+v", u)
	}
	// Fresh users have no avatar or bio; the NULL columns read as "".
	if u.AvatarURL != "" || u.Bio != "" {
		t.Fatalf("expected empty profile fields, got avatar=%q bio=%q", u.AvatarURL, u.Bio)
	}

	if _, err := s.GetUserByUsername(ctx, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProfileUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, s, "alice")

	if err := s.UpdateAvatarURL(ctx, u.ID, "https://cdn.example/a.png"); err != nil {
		t.Fatalf("UpdateAvatarURL failed: %v", err)
	}
	if err := s.UpdateBio(ctx, u.ID, "hello\nworld"); err != nil {
		t.Fatalf("UpdateBio failed: %v", err)
	}

	got, err := s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if got.AvatarURL != "https://cdn.example/a.png" {
		t.Fatalf("avatar = %q", got.AvatarURL)
	}
	if got.Bio != "hello\nworld" {
		t.Fatalf("bio = %q", got.Bio)
	}

	// Clearing stores NULL, which reads back as "".
	if err := s.UpdateAvatarURL(ctx, u.ID, ""); err != nil {
		t.Fatalf("clear avatar failed: %v", err)
	}
	got, err = s.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if got.AvatarURL != "" {
		t.Fatalf("cleared avatar = %q", got.AvatarURL)
	}

	if err := s.UpdateBio(ctx, 9999, "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown user: expected ErrNotFound, got %v", err)
	}
}

func TestRoomHistoryWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice")

	for i := 0; i < 60; i++ {
		msg := &store.Message{
			SenderID:    alice.ID,
			Content:     fmt.Sprintf("msg-%02d", i),
			MeetingCode: "public",
		}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("SaveMessage %d failed: %v", i, err)
		}
	}

	history, err := s.RoomHistory(ctx, "public", 50)
	if err != nil {
		t.Fatalf("RoomHistory failed: %v", err)
	}
	if len(history) != 50 {
		t.Fatalf("history length = %d, want 50", len(history))
	}
	// The window is the newest 50, replayed oldest first.
	if history[0].Content != "msg-10" || history[49].Content != "msg-59" {
		t.Fatalf("window bounds = %q .. %q", history[0].Content, history[49].Content)
	}
	for i := 1; i < len(history); i++ {
		if history[i-1].Content > history[i].Content {
			t.Fatalf("history out of order at %d: %q before %q", i, history[i-1].Content, history[i].Content)
		}
	}
	if history[0].SenderUsername != "alice" {
		t.Fatalf("sender = %q", history[0].SenderUsername)
	}
}

func TestRoomAndDirectHistoryAreDisjoint(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")

	roomMsg := &store.Message{SenderID: alice.ID, Content: "in the room", MeetingCode: "public"}
	if err := s.SaveMessage(ctx, roomMsg); err != nil {
		t.Fatalf("save room message: %v", err)
	}
	dmMsg := &store.Message{SenderID: alice.ID, ReceiverID: &bob.ID, Content: "just for you", MeetingCode: store.DirectCode}
	if err := s.SaveMessage(ctx, dmMsg); err != nil {
		t.Fatalf("save direct message: %v", err)
	}

	room, err := s.RoomHistory(ctx, "public", 50)
	if err != nil {
		t.Fatalf("RoomHistory failed: %v", err)
	}
	if len(room) != 1 || room[0].Content != "in the room" {
		t.Fatalf("room history = %+v", room)
	}

	direct, err := s.DirectHistory(ctx, alice.ID, bob.ID, 50)
	if err != nil {
		t.Fatalf("DirectHistory failed: %v", err)
	}
	if len(direct) != 1 || direct[0].Content != "just for you" {
		t.Fatalf("direct history = %+v", direct)
	}
}

func TestDirectHistoryBothDirections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, s, "alice")
	bob := seedUser(t, s, "bob")
	carol := seedUser(t, s, "carol")

	save := func(from, to *store.User, content string) {
		t.Helper()
		msg := &store.Message{SenderID: from.ID, ReceiverID: &to.ID, Content: content, MeetingCode: store.DirectCode}
		if err := s.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("save %q: %v", content, err)
		}
	}
	save(alice, bob, "hi bob")
	save(bob, alice, "hi alice")
	save(alice, carol, "hi carol")

	history, err := s.DirectHistory(ctx, alice.ID, bob.ID, 50)
	if err != nil {
		t.Fatalf("DirectHistory failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2: %+v", len(history), history)
	}
	if history[0].Content != "hi bob" || history[0].SenderUsername != "alice" {
		t.Fatalf("first entry = %+v", history[0])
	}
	if history[1].Content != "hi alice" || history[1].SenderUsername != "bob" {
		t.Fatalf("second entry = %+v", history[1])
	}

	// The argument order must not matter.
	reversed, err := s.DirectHistory(ctx, bob.ID, alice.ID, 50)
	if err != nil {
		t.Fatalf("DirectHistory reversed failed: %v", err)
	}
	if len(reversed) != 2 || reversed[0].Content != "hi bob" {
		t.Fatalf("reversed history = %+v", reversed)
	}

	empty, err := s.DirectHistory(ctx, bob.ID, carol.ID, 50)
	if err != nil {
		t.Fatalf("DirectHistory empty pair failed: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty history, got %+v", empty)
	}
}
