package proto

import "strings"

// CommandKind discriminates parsed inbound frames.
type CommandKind int

const (
	// CommandRegister creates a new identity; it does not authenticate.
	CommandRegister CommandKind = iota
	// CommandLogin authenticates the connection.
	CommandLogin
	// CommandJoinRoom switches the session's meeting code.
	CommandJoinRoom
	// CommandSendDirect sends a direct message to a named user.
	CommandSendDirect
	// CommandDirectHistory selects a DM partner and requests the pair history.
	CommandDirectHistory
	// CommandRoomHistory requests bounded history for a meeting code.
	CommandRoomHistory
	// CommandUpdateAvatar replaces the sender's avatar URL.
	CommandUpdateAvatar
	// CommandUpdateBio replaces the sender's bio.
	CommandUpdateBio
	// CommandPlainChat is untagged text broadcast to the current room.
	CommandPlainChat
)

// Command is the tagged union produced by one exhaustive parse step.
// Only the fields relevant to Kind are populated.
type Command struct {
	Kind CommandKind

	Username string
	Password string
	Email    string
	Room     string
	Partner  string
	Text     string
	Avatar   string
	Bio      string
}

// ParseError reports a structurally invalid frame. It is a value the engine
// converts into a failure event; parsing never panics.
type ParseError struct {
	Tag    string
	Reason string
}

func (e *ParseError) Error() string {
	return "parse " + e.Tag + ": " + e.Reason
}

// Inbound tags. A tag is only recognized when followed by a colon; a bare
// "LOGIN" with no fields is room chat like any other text.
const (
	TagLogin          = "LOGIN"
	TagRegister       = "REGISTER"
	TagMeetingCode    = "MEETING_CODE"
	TagDirectSend     = "DM_SEND"
	TagDirectHistory  = "REQ_DM_HIST"
	TagMeetingHistory = "REQ_MEETING_HIST"
	TagUpdateAvatar   = "UPDATE_AVATAR_URL"
	TagUpdateProfile  = "UPDATE_PROFILE"
)

// Parse maps one inbound text frame to a Command. Fields are colon-separated
// with a bounded field count per tag, so the final field may itself contain
// colons. Text that matches no known tag is room chat.
func Parse(frame string) (Command, *ParseError) {
	tag, rest, ok := strings.Cut(frame, ":")
	if !ok {
		return Command{Kind: CommandPlainChat, Text: frame}, nil
	}

	switch tag {
	case TagLogin:
		username, password, ok := strings.Cut(rest, ":")
		if !ok {
			return Command{}, &ParseError{Tag: tag, Reason: "want LOGIN:username:password"}
		}
		return Command{Kind: CommandLogin, Username: username, Password: password}, nil

	case TagRegister:
		parts := strings.SplitN(rest, ":", 3)
		if len(parts) != 3 {
			return Command{}, &ParseError{Tag: tag, Reason: "want REGISTER:username:password:email"}
		}
		return Command{Kind: CommandRegister, Username: parts[0], Password: parts[1], Email: parts[2]}, nil

	case TagMeetingCode:
		return Command{Kind: CommandJoinRoom, Room: rest}, nil

	case TagDirectSend:
		partner, text, ok := strings.Cut(rest, ":")
		if !ok {
			return Command{}, &ParseError{Tag: tag, Reason: "want DM_SEND:recipient:text"}
		}
		return Command{Kind: CommandSendDirect, Partner: partner, Text: text}, nil

	case TagDirectHistory:
		if rest == "" {
			return Command{}, &ParseError{Tag: tag, Reason: "want REQ_DM_HIST:username"}
		}
		return Command{Kind: CommandDirectHistory, Partner: rest}, nil

	case TagMeetingHistory:
		if strings.TrimSpace(rest) == "" {
			return Command{}, &ParseError{Tag: tag, Reason: "want REQ_MEETING_HIST:code"}
		}
		return Command{Kind: CommandRoomHistory, Room: rest}, nil

	case TagUpdateAvatar:
		return Command{Kind: CommandUpdateAvatar, Avatar: rest}, nil

	case TagUpdateProfile:
		fields, err := DecodeFlat(rest)
		if err != nil {
			return Command{}, &ParseError{Tag: tag, Reason: "invalid JSON payload"}
		}
		for _, f := range fields {
			if f.Key == "bio" {
				return Command{Kind: CommandUpdateBio, Bio: f.Value}, nil
			}
		}
		return Command{}, &ParseError{Tag: tag, Reason: "missing bio field"}

	default:
		// Unknown tags are chat text, colons and all.
		return Command{Kind: CommandPlainChat, Text: frame}, nil
	}
}
