// Package server exposes the HTTP handlers: the WebSocket upgrade, the health
// check and the room statistics.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// Stats is the body served by the stats endpoint.
type Stats struct {
	Participants int `json:"participants"`
	Connections  int `json:"connections"`
}

// WebSocketHandler upgrades GET requests to WebSocket connections and hands
// each new client to the hub.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(hub.logger),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)
		if err := hub.Join(client); err != nil {
			hub.logger.Warn("rejecting connection", "remote", r.RemoteAddr, "error", err)
			client.close()
		}
	}
}

// HealthHandler reports that the server is up.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Relay server is running!")
}

// StatsHandler reports how many connections are open and how many joined.
func StatsHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		stats := Stats{
			Participants: hub.router.Participants(),
			Connections:  hub.router.Connections(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			hub.logger.Error("writing stats response", "error", err)
		}
	}
}
