// Package testhelpers provides common utilities for exercising the relay over
// real WebSocket connections in tests.
//
// It starts an in-process server wired the same way as cmd/server, dials it
// with the gorilla client, and reads and writes event frames so tests can
// focus on what each participant sees.
package testhelpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/callroom/internal/registry"
	"github.com/Tyrowin/callroom/internal/relay"
	"github.com/Tyrowin/callroom/internal/server"
)

// TestOrigin is the Origin header sent by ConnectWebSocket.
const TestOrigin = "http://localhost:3000"

// ReadTimeout bounds every ReceiveEvent call.
const ReadTimeout = 2 * time.Second

// Env is a running relay server for one test.
type Env struct {
	Server *httptest.Server
	Hub    *server.Hub
	WSURL  string
}

// StartServer runs a hub and HTTP server with a fresh registry. The optional
// customize hook adjusts the transport configuration first. Everything is torn
// down when the test ends.
func StartServer(t *testing.T, customize func(cfg *server.Config)) *Env {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{TestOrigin}
	if customize != nil {
		customize(cfg)
	}
	server.SetConfig(cfg)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := relay.NewRouter(registry.New(), logger)
	hub := server.NewHub(router, logger)
	go hub.Run()

	ts := httptest.NewServer(server.SetupRoutes(hub))
	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(2 * time.Second)
		server.SetConfig(nil)
	})

	return &Env{
		Server: ts,
		Hub:    hub,
		WSURL:  "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

// ConnectWebSocket dials url with the given Origin header.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	return dialer.Dial(url, headers)
}

// Connect dials the test server and fails the test on error.
func (e *Env) Connect(t *testing.T) *websocket.Conn {
	t.Helper()

	conn, resp, err := ConnectWebSocket(e.WSURL, TestOrigin)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendEvent writes one event frame with a JSON-encoded payload.
func SendEvent(conn *websocket.Conn, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(relay.Envelope{Event: event, Data: raw})
}

// SendRawEvent writes one event frame whose payload is the literal JSON text.
func SendRawEvent(conn *websocket.Conn, event, rawData string) error {
	frame := fmt.Sprintf(`{"event":%q,"data":%s}`, event, rawData)
	return conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// ReceiveFrame reads the next frame verbatim.
func ReceiveFrame(conn *websocket.Conn) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(ReadTimeout)); err != nil {
		return nil, err
	}
	_, data, err := conn.ReadMessage()
	return data, err
}

// ReceiveEvent reads and decodes the next frame.
func ReceiveEvent(conn *websocket.Conn) (relay.Envelope, error) {
	var env relay.Envelope
	data, err := ReceiveFrame(conn)
	if err != nil {
		return env, err
	}
	err = json.Unmarshal(data, &env)
	return env, err
}

// ExpectEvent reads the next frame and requires it to carry the named event.
func ExpectEvent(t *testing.T, conn *websocket.Conn, event string) relay.Envelope {
	t.Helper()

	env, err := ReceiveEvent(conn)
	require.NoError(t, err, "waiting for %q", event)
	require.Equal(t, event, env.Event)
	return env
}

// DecodeData unmarshals the payload of env into a value of type T.
func DecodeData[T any](t *testing.T, env relay.Envelope) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// Join sends a join for name and consumes the acknowledgement and presence
// list. It returns the connection id the server assigned.
func Join(t *testing.T, conn *websocket.Conn, name string) string {
	t.Helper()

	require.NoError(t, SendEvent(conn, relay.EventJoin, name))
	joined := DecodeData[relay.Joined](t, ExpectEvent(t, conn, relay.EventJoined))
	ExpectEvent(t, conn, relay.EventUsers)
	return joined.ID
}

// ExpectNoEvent requires that nothing arrives on conn within timeout.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "expected no event, got %s", data)

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("unexpected error while waiting for absence of events: %v", err)
}

// CloseWebSocket sends a normal close frame and closes the connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}
