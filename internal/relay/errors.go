package relay

// Error codes for relay domain errors. Every one of these is converted into a
// tagged outbound event at the point of occurrence; none terminates the relay
// task of another connection.
const (
	// CodeProtocol marks a malformed or unknown command.
	CodeProtocol = "protocol_error"
	// CodeAuthRequired marks a command issued before authentication.
	CodeAuthRequired = "auth_required"
	// CodeValidation marks a rejected value (bad URL, oversized bio, self-DM).
	CodeValidation = "validation"
	// CodeNotFound marks an unknown DM partner or history subject.
	CodeNotFound = "not_found"
	// CodePersistence marks a failed store call, reported to the sender.
	CodePersistence = "persistence"
	// CodeConflict marks a login for an already-connected username. It is
	// resolved by evicting the prior connection, never reported to the new one.
	CodeConflict = "conflict"
)

// Error wraps a code and a human-readable message suitable for the wire.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func validationError(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}
