package proto

import (
	"strings"

	"github.com/heartline-app/relay-server/internal/store"
)

// Outbound tags.
const (
	TagLoginSuccess         = "LOGIN_SUCCESS"
	TagLoginFail            = "LOGIN_FAIL"
	TagRegisterSuccess      = "REGISTER_SUCCESS"
	TagRegisterFail         = "REGISTER_FAIL"
	TagUserJoined           = "USER_JOINED"
	TagUserLeft             = "USER_LEFT"
	TagUserProfileUpdate    = "USER_PROFILE_UPDATE"
	TagRoomMessage          = "MSG"
	TagDirectReceive        = "DM_RECEIVE"
	TagDirectSentConfirm    = "DM_SENT_CONFIRM"
	TagRespDirectHistory    = "RESP_DM_HIST"
	TagRespMeetingHistory   = "RESP_MEETING_HIST"
	TagMeetingCodeStatus    = "MEETING_CODE_STATUS"
	TagAvatarUpdateSuccess  = "AVATAR_UPDATE_SUCCESS"
	TagAvatarUpdateFail     = "AVATAR_UPDATE_FAIL"
	TagProfileUpdateSuccess = "PROFILE_UPDATE_SUCCESS"
	TagProfileUpdateFail    = "PROFILE_UPDATE_FAIL"
	TagError                = "ERROR"
	TagSystemMsg            = "SYSTEM_MSG"
)

// event joins a tag and fields with the wire's colon grammar. Only the final
// field may contain colons, which every builder below respects.
func event(tag string, fields ...string) string {
	if len(fields) == 0 {
		return tag
	}
	return tag + ":" + strings.Join(fields, ":")
}

// LoginSuccess carries the greeting, avatar and bio. The bio is escaped so the
// frame stays newline-free; clients reverse it with Unescape.
func LoginSuccess(username, avatar, bio string) string {
	return event(TagLoginSuccess, "Welcome "+username, avatar, Escape(bio))
}

func LoginFail(reason string) string {
	return event(TagLoginFail, reason)
}

func RegisterSuccess() string {
	return event(TagRegisterSuccess, "Registration successful. Please login.")
}

func RegisterFail(reason string) string {
	return event(TagRegisterFail, reason)
}

func UserJoined(username, avatar string) string {
	return event(TagUserJoined, username, avatar)
}

func UserLeft(username string) string {
	return event(TagUserLeft, username)
}

// UserProfileUpdate broadcasts refreshed profile metadata. The bio is escaped
// for the wire.
func UserProfileUpdate(username, avatar, bio string) string {
	return event(TagUserProfileUpdate, username, avatar, Escape(bio))
}

func RoomMessage(sender, text string) string {
	return event(TagRoomMessage, sender, text)
}

func DirectReceive(from, text string) string {
	return event(TagDirectReceive, from, text)
}

func DirectSentConfirm(to, text string) string {
	return event(TagDirectSentConfirm, to, text)
}

func RespDirectHistory(partner string, entries []store.HistoryEntry) string {
	return event(TagRespDirectHistory, partner, EncodeHistory(entries))
}

func RespMeetingHistory(code string, entries []store.HistoryEntry) string {
	return event(TagRespMeetingHistory, code, EncodeHistory(entries))
}

func MeetingCodeStatus(text string) string {
	return event(TagMeetingCodeStatus, text)
}

func AvatarUpdateSuccess(url string) string {
	return event(TagAvatarUpdateSuccess, url)
}

func AvatarUpdateFail(reason string) string {
	return event(TagAvatarUpdateFail, reason)
}

func ProfileUpdateSuccess(bio string) string {
	return event(TagProfileUpdateSuccess, EncodeFlat(Field{Key: "bio", Value: bio}))
}

func ProfileUpdateFail(reason string) string {
	return event(TagProfileUpdateFail, reason)
}

func ErrorMsg(text string) string {
	return event(TagError, text)
}

func SystemMsg(text string) string {
	return event(TagSystemMsg, text)
}
