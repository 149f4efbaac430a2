// Package server defines shared wire-level helper types reused across
// client and hub logic.
package server

import (
	"encoding/json"
	"strings"
)

// Envelope is the minimal inbound frame: a type tag identifying which
// typed request the raw payload decodes into.
type Envelope struct {
	Type string `json:"type"`
}

// decodeEnvelope extracts the event type from a raw inbound frame.
func decodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(raw, &env)
	return env, err
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
