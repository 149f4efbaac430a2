// Package chat defines the error taxonomy reported back to clients.
package chat

// ValidationError reports malformed input (empty or oversized username or
// text, unknown room). State is never mutated when one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ProtocolError reports an operation attempted in the wrong connection
// state, such as sending a message before joining.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return e.Reason
}
