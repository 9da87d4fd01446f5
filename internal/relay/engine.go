package relay

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/heartline-app/relay-server/internal/auth"
	"github.com/heartline-app/relay-server/internal/proto"
	"github.com/heartline-app/relay-server/internal/store"
)

const (
	maxBioLength    = 2000
	maxAvatarLength = 512
)

// Authenticator is the credential capability the engine consumes.
// auth.Service satisfies it.
type Authenticator interface {
	Register(ctx context.Context, username, password, email string) error
	Authenticate(ctx context.Context, username, password string) (*store.User, error)
}

// Engine is the orchestrating state machine per connection: auth gate, command
// dispatch, broadcast and DM delivery, profile-update fan-out. One goroutine
// per connection feeds it frames in arrival order; all shared state lives in
// the injected registry and router, never in package globals.
type Engine struct {
	registry *Registry
	router   *Router
	auth     Authenticator
	identity store.IdentityStore
	history  store.HistoryStore
	log      *zerolog.Logger

	historyLimit int
}

// NewEngine wires the relay engine.
func NewEngine(registry *Registry, router *Router, authn Authenticator, identity store.IdentityStore, history store.HistoryStore, historyLimit int, logger *zerolog.Logger) *Engine {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Engine{
		registry:     registry,
		router:       router,
		auth:         authn,
		identity:     identity,
		history:      history,
		log:          logger,
		historyLimit: historyLimit,
	}
}

// Open creates an unauthenticated session for a freshly accepted connection.
func (e *Engine) Open(conn Conn) *Session {
	e.log.Debug().Str("conn_id", conn.ID()).Msg("connection opened")
	return &Session{
		conn: conn,
		room: e.router.DefaultRoom(),
	}
}

// Close removes the session from the registry and profile cache and broadcasts
// a leave event to its last room. Called exactly once per connection by the
// transport when the channel closes.
func (e *Engine) Close(s *Session) {
	username := s.Username()
	if username == "" {
		e.log.Debug().Str("conn_id", s.Conn().ID()).Msg("unauthenticated connection closed")
		return
	}

	// An evicted session must not tear down its replacement, so the leave
	// broadcast only fires when this session still owned the mapping.
	if !e.registry.Unregister(username, s) {
		e.log.Debug().Str("user", username).Msg("evicted connection closed")
		return
	}

	e.log.Info().Str("user", username).Msg("user disconnected")
	e.fanout(e.router.RoomTargets(s.Room()), s, false, proto.UserLeft(username))
}

// Handle processes one inbound frame for a session. Errors of every class are
// converted to outbound events here; nothing propagates to the caller.
func (e *Engine) Handle(ctx context.Context, s *Session, frame string) {
	cmd, perr := proto.Parse(frame)
	if perr != nil {
		e.log.Debug().Str("tag", perr.Tag).Str("reason", perr.Reason).Msg("malformed frame")
		s.Send(parseFailure(perr))
		return
	}

	switch cmd.Kind {
	case proto.CommandRegister:
		e.handleRegister(ctx, s, cmd)
	case proto.CommandLogin:
		e.handleLogin(ctx, s, cmd)
	default:
		if !s.Authenticated() {
			s.Send(proto.ErrorMsg("Authentication required."))
			return
		}
		switch cmd.Kind {
		case proto.CommandJoinRoom:
			e.handleJoinRoom(s, cmd)
		case proto.CommandSendDirect:
			e.handleSendDirect(ctx, s, cmd)
		case proto.CommandDirectHistory:
			e.handleDirectHistory(ctx, s, cmd)
		case proto.CommandRoomHistory:
			e.handleRoomHistory(ctx, s, cmd)
		case proto.CommandUpdateAvatar:
			e.handleUpdateAvatar(ctx, s, cmd)
		case proto.CommandUpdateBio:
			e.handleUpdateBio(ctx, s, cmd)
		case proto.CommandPlainChat:
			e.handlePlainChat(ctx, s, cmd)
		}
	}
}

// parseFailure maps a parse error to the failure tag its command family uses.
func parseFailure(perr *proto.ParseError) string {
	switch perr.Tag {
	case proto.TagLogin:
		return proto.LoginFail("Invalid format.")
	case proto.TagRegister:
		return proto.RegisterFail("Invalid format.")
	case proto.TagUpdateProfile:
		return proto.ProfileUpdateFail("Invalid JSON payload format for bio.")
	default:
		return proto.ErrorMsg("Invalid " + perr.Tag + " format.")
	}
}

func (e *Engine) handleRegister(ctx context.Context, s *Session, cmd proto.Command) {
	err := e.auth.Register(ctx, cmd.Username, cmd.Password, cmd.Email)
	switch {
	case err == nil:
		e.log.Info().Str("user", cmd.Username).Msg("user registered")
		s.Send(proto.RegisterSuccess())
	case errors.Is(err, auth.ErrUserExists):
		s.Send(proto.RegisterFail("Username or email already exists."))
	case errors.Is(err, auth.ErrInvalidUsername),
		errors.Is(err, auth.ErrInvalidPassword),
		errors.Is(err, auth.ErrInvalidEmail):
		s.Send(proto.RegisterFail(err.Error()))
	default:
		e.log.Error().Err(err).Str("user", cmd.Username).Msg("registration failed")
		s.Send(proto.RegisterFail("Registration failed."))
	}
}

func (e *Engine) handleLogin(ctx context.Context, s *Session, cmd proto.Command) {
	user, err := e.auth.Authenticate(ctx, cmd.Username, cmd.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.Send(proto.LoginFail("Invalid credentials."))
			return
		}
		e.log.Error().Err(err).Str("user", cmd.Username).Msg("login failed")
		s.Send(proto.LoginFail("Server error."))
		return
	}

	// Re-login on an already-bound session releases its previous identity,
	// and the room learns that identity is gone.
	if prev := s.Username(); prev != "" && prev != user.Username {
		if e.registry.Unregister(prev, s) {
			e.fanout(e.router.RoomTargets(s.Room()), s, false, proto.UserLeft(prev))
		}
	}

	s.bind(user.Username, user.ID)
	profile := Profile{Avatar: user.AvatarURL, Bio: user.Bio}
	if evicted := e.registry.Register(s, profile, proto.SystemMsg("Logged in from another location.")); evicted != nil {
		e.log.Info().Str("user", user.Username).Str("old_conn", evicted.Conn().ID()).Msg("evicted prior session")
	}

	s.Send(proto.LoginSuccess(user.Username, user.AvatarURL, user.Bio))
	e.log.Info().Str("user", user.Username).Int64("user_id", user.ID).Msg("user logged in")

	// New logins are visible to their room (the default room unless a prior
	// MEETING_CODE on this connection changed it) right away.
	e.fanout(e.router.RoomTargets(s.Room()), s, false, proto.UserJoined(user.Username, user.AvatarURL))
}

func (e *Engine) handleJoinRoom(s *Session, cmd proto.Command) {
	prev := e.router.SetRoom(s, cmd.Room)
	code := s.Room()
	s.Send(proto.MeetingCodeStatus("Joined code: " + code))

	if prev == code {
		return
	}

	username := s.Username()
	avatar := e.cachedAvatar(username)
	e.fanout(e.router.RoomTargets(prev), s, false, proto.UserLeft(username))
	e.fanout(e.router.RoomTargets(code), s, false, proto.UserJoined(username, avatar))
}

func (e *Engine) handleSendDirect(ctx context.Context, s *Session, cmd proto.Command) {
	sender := s.Username()
	if cmd.Partner == sender {
		s.Send(proto.ErrorMsg("Cannot send a direct message to yourself."))
		return
	}

	recipient, err := e.identity.GetUserByUsername(ctx, cmd.Partner)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Send(proto.ErrorMsg("User " + cmd.Partner + " not found."))
			return
		}
		e.log.Error().Err(err).Str("partner", cmd.Partner).Msg("resolve DM recipient")
		s.Send(proto.ErrorMsg("Failed to send direct message."))
		return
	}

	receiverID := recipient.ID
	msg := &store.Message{
		SenderID:    s.UserID(),
		ReceiverID:  &receiverID,
		Content:     cmd.Text,
		MeetingCode: store.DirectCode,
	}
	if err := e.history.SaveMessage(ctx, msg); err != nil {
		e.log.Error().Err(err).Str("user", sender).Msg("persist direct message")
		s.Send(proto.ErrorMsg("Failed to send direct message."))
		return
	}

	s.Send(proto.DirectSentConfirm(cmd.Partner, cmd.Text))

	if target := e.registry.Lookup(cmd.Partner); target != nil && target.Conn().Open() {
		target.Send(proto.DirectReceive(sender, cmd.Text))
	} else {
		s.Send(proto.SystemMsg("User " + cmd.Partner + " is offline."))
	}
}

// handleDirectHistory is the DM-partner selection step: it flips the session
// into DM mode and replies with the pair history. The room code is retained so
// a later MEETING_CODE restores room broadcasts.
func (e *Engine) handleDirectHistory(ctx context.Context, s *Session, cmd proto.Command) {
	if cmd.Partner == s.Username() {
		s.Send(proto.ErrorMsg("Cannot open a direct chat with yourself."))
		return
	}

	partner, err := e.identity.GetUserByUsername(ctx, cmd.Partner)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Send(proto.ErrorMsg("User not found for DM history."))
			return
		}
		e.log.Error().Err(err).Str("partner", cmd.Partner).Msg("resolve DM history partner")
		s.Send(proto.ErrorMsg("Failed to load direct history."))
		return
	}

	// DM mode is entered only once the history is in hand; a store failure
	// must not strand the session outside its room.
	entries, err := e.history.DirectHistory(ctx, s.UserID(), partner.ID, e.historyLimit)
	if err != nil {
		e.log.Error().Err(err).Str("partner", cmd.Partner).Msg("query direct history")
		s.Send(proto.ErrorMsg("Failed to load direct history."))
		return
	}

	e.router.EnterDM(s, partner.Username)
	s.Send(proto.RespDirectHistory(partner.Username, entries))
}

func (e *Engine) handleRoomHistory(ctx context.Context, s *Session, cmd proto.Command) {
	code := e.router.Normalize(cmd.Room)
	entries, err := e.history.RoomHistory(ctx, code, e.historyLimit)
	if err != nil {
		e.log.Error().Err(err).Str("room", code).Msg("query room history")
		s.Send(proto.ErrorMsg("Failed to load meeting history."))
		return
	}
	s.Send(proto.RespMeetingHistory(code, entries))
}

func (e *Engine) handleUpdateAvatar(ctx context.Context, s *Session, cmd proto.Command) {
	url := cmd.Avatar
	if err := validateAvatarURL(url); err != nil {
		s.Send(proto.AvatarUpdateFail(err.Message))
		return
	}

	if err := e.identity.UpdateAvatarURL(ctx, s.UserID(), url); err != nil {
		e.log.Error().Err(err).Str("user", s.Username()).Msg("persist avatar")
		s.Send(proto.AvatarUpdateFail("Could not update avatar."))
		return
	}

	username := s.Username()
	e.registry.SetAvatar(username, url)
	s.Send(proto.AvatarUpdateSuccess(url))
	e.broadcastProfile(s)
}

func (e *Engine) handleUpdateBio(ctx context.Context, s *Session, cmd proto.Command) {
	if len(cmd.Bio) > maxBioLength {
		s.Send(proto.ProfileUpdateFail("Bio is too long (max 2000 chars)."))
		return
	}

	if err := e.identity.UpdateBio(ctx, s.UserID(), cmd.Bio); err != nil {
		e.log.Error().Err(err).Str("user", s.Username()).Msg("persist bio")
		s.Send(proto.ProfileUpdateFail("Could not update bio."))
		return
	}

	username := s.Username()
	e.registry.SetBio(username, cmd.Bio)
	s.Send(proto.ProfileUpdateSuccess(cmd.Bio))
	e.broadcastProfile(s)
}

func (e *Engine) handlePlainChat(ctx context.Context, s *Session, cmd proto.Command) {
	// A DM-mode sender is excluded from its room's broadcast targets, so
	// accepting the message here would persist it without ever echoing it.
	if _, inDM := s.DMPartner(); inDM {
		s.Send(proto.ErrorMsg("Not in a meeting room. Use DM_SEND for direct messages."))
		return
	}

	code := s.Room()
	msg := &store.Message{
		SenderID:    s.UserID(),
		Content:     cmd.Text,
		MeetingCode: code,
	}
	if err := e.history.SaveMessage(ctx, msg); err != nil {
		// Broadcasting an unpersisted message would desync history replay.
		e.log.Error().Err(err).Str("user", s.Username()).Str("room", code).Msg("persist room message")
		s.Send(proto.ErrorMsg("Failed to send message."))
		return
	}

	// The sender receives its own message so its view orders consistently.
	e.fanout(e.router.RoomTargets(code), nil, true, proto.RoomMessage(s.Username(), cmd.Text))
}

// broadcastProfile fans the caller's refreshed profile out to every session in
// its room, DM-mode sessions included: stepping into a DM view does not remove
// a user from the room's profile audience.
func (e *Engine) broadcastProfile(s *Session) {
	username := s.Username()
	profile, _ := e.registry.Profile(username)
	e.fanout(e.router.ProfileTargets(s.Room()), nil, true, proto.UserProfileUpdate(username, profile.Avatar, profile.Bio))
}

// fanout delivers a frame to a previously snapshotted target set. source is
// skipped unless includeSource; sends to closed connections are no-ops.
func (e *Engine) fanout(targets []*Session, source *Session, includeSource bool, frame string) {
	for _, t := range targets {
		if !includeSource && t == source {
			continue
		}
		t.Send(frame)
	}
}

func (e *Engine) cachedAvatar(username string) string {
	p, _ := e.registry.Profile(username)
	return p.Avatar
}

func validateAvatarURL(url string) *Error {
	if len(url) > maxAvatarLength {
		return validationError("Invalid URL.")
	}
	if url != "" && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return validationError("Invalid URL.")
	}
	return nil
}
