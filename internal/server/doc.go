// Package server is the transport around the room relay: it upgrades HTTP
// requests to WebSocket connections, pumps frames in and out of them, and
// funnels every connect, frame and disconnect through a single hub loop so
// the relay sees one event at a time.
package server
