package relay

// CloseReasonEvicted is the Close reason for a session replaced by a newer
// login. Transports surface it with a policy-violation close status.
const CloseReasonEvicted = "logged in elsewhere"

// Conn is one live transport channel as seen by the relay. The transport layer
// owns the underlying socket; the relay drops all references once it closes.
type Conn interface {
	// ID returns a unique identifier for the connection.
	ID() string

	// Send queues one outbound frame. It never blocks: frames to slow or
	// closed connections are dropped best-effort.
	Send(frame string)

	// Close tears the connection down. It never blocks: transports perform
	// the actual teardown asynchronously, delivering frames queued before
	// the call first. Safe to call more than once.
	Close(reason string)

	// Open reports whether the connection can still receive frames.
	Open() bool
}
