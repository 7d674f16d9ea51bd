// Package server defines transport-level errors and helper types shared by
// the client and hub logic.
package server

import (
	"errors"
	"strings"
)

var (
	// ErrSendBufferFull is returned when a client cannot keep up with outbound frames.
	ErrSendBufferFull = errors.New("send buffer full")

	// ErrHubClosed is returned when a client is handed to a hub that has shut down.
	ErrHubClosed = errors.New("hub closed")
)

// inboundFrame is one frame read from a client, waiting for the hub loop.
type inboundFrame struct {
	client *Client
	data   []byte
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
