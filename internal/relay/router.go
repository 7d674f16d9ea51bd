// Package relay turns inbound room events into outbound frames and decides
// which connections receive them.
//
// The router is not safe for concurrent use. All calls for a room must come
// from one goroutine, which is what the server hub's event loop does.
package relay

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Tyrowin/callroom/internal/registry"
)

// Router dispatches events between the connections of the room.
type Router struct {
	registry  *registry.Registry
	directory *Directory
	validate  *validator.Validate
	logger    *slog.Logger
	now       func() time.Time
}

// NewRouter creates a Router that owns the given registry.
func NewRouter(reg *registry.Registry, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry:  reg,
		directory: NewDirectory(),
		validate:  validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// Participants returns how many connections have joined.
func (r *Router) Participants() int {
	return r.registry.Len()
}

// Connections returns how many connections are open.
func (r *Router) Connections() int {
	return r.directory.Len()
}

// Connect makes a freshly opened connection reachable. Nothing is broadcast
// until it joins.
func (r *Router) Connect(conn Conn) {
	r.directory.Add(conn)
	r.logger.Debug("connection opened", "connectionId", conn.ID(), "connections", r.directory.Len())
}

// Disconnect forgets a closed connection. If it had joined, the rest of the
// room is told it left, gets the new presence list, and receives a call end
// for it whether or not a call was running.
func (r *Router) Disconnect(conn Conn) {
	id := conn.ID()
	r.directory.Remove(id)

	p, ok := r.registry.Remove(id)
	if !ok {
		r.logger.Debug("connection closed before joining", "connectionId", id)
		return
	}

	r.logger.Info("participant left", "connectionId", id, "name", p.DisplayName, "participants", r.registry.Len())
	r.emit(EventSystem, p.DisplayName+" left the chat", AllExcept(id))
	r.emit(EventUsers, r.registry.DisplayNames(), All())
	r.deliver(encodeSignal(EventEnd, id, "", nil), AllExcept(id))
}

// Handle processes one raw frame received from conn.
func (r *Router) Handle(conn Conn, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		r.logger.Warn("invalid frame", "connectionId", conn.ID(), "error", err)
		return
	}

	switch env.Event {
	case EventJoin:
		r.handleJoin(conn, env.Data)
	case EventMessage:
		r.handleMessage(conn, env.Data)
	case EventTyping:
		r.handleTyping(conn, env.Data)
	case EventOffer, EventAnswer, EventCandidate, EventEnd:
		r.handleSignal(conn, env.Event, env.Data)
	default:
		r.logger.Debug("unknown event", "connectionId", conn.ID(), "event", env.Event)
	}
}

func (r *Router) handleJoin(conn Conn, data json.RawMessage) {
	id := conn.ID()

	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		r.logger.Debug("join without a string name", "connectionId", id)
		return
	}
	req := joinRequest{Name: strings.TrimSpace(name)}
	if err := r.validate.Struct(req); err != nil {
		r.logger.Debug("join rejected", "connectionId", id, "error", err)
		return
	}

	p, err := r.registry.Register(id, req.Name)
	if errors.Is(err, registry.ErrDuplicateRegistration) {
		r.logger.Warn("repeated join", "connectionId", id, "name", req.Name)
		r.emit(EventJoinError, JoinRejected{Reason: "already joined"}, Only(id))
		return
	}
	if err != nil {
		r.logger.Error("join failed", "connectionId", id, "error", err)
		return
	}

	r.logger.Info("participant joined", "connectionId", id, "name", p.DisplayName, "participants", r.registry.Len())
	r.emit(EventJoined, Joined{Username: p.DisplayName, ID: id}, Only(id))
	r.emit(EventSystem, p.DisplayName+" joined the chat", AllExcept(id))
	r.emit(EventUsers, r.registry.DisplayNames(), All())
}

func (r *Router) handleMessage(conn Conn, data json.RawMessage) {
	p, ok := r.registry.Lookup(conn.ID())
	if !ok {
		r.logger.Debug("message from unjoined connection dropped", "connectionId", conn.ID())
		return
	}

	var in inboundMessage
	if len(data) > 0 {
		if err := json.Unmarshal(data, &in); err != nil {
			in = inboundMessage{}
		}
	}

	r.emit(EventMessage, ChatMessage{
		Text:      truncate(coerceText(in.Text), MaxTextLength),
		From:      p.DisplayName,
		Timestamp: r.now().UnixMilli(),
	}, All())
}

func (r *Router) handleTyping(conn Conn, data json.RawMessage) {
	p, ok := r.registry.Lookup(conn.ID())
	if !ok {
		return
	}
	r.emit(EventTyping, Typing{From: p.DisplayName, IsTyping: truthy(data)}, AllExcept(conn.ID()))
}

func (r *Router) handleSignal(conn Conn, event string, data json.RawMessage) {
	id := conn.ID()
	r.logger.Debug("relaying signal", "connectionId", id, "event", event, "bytes", len(data))
	r.deliver(encodeSignal(event, id, signalField[event], data), AllExcept(id))
}

func (r *Router) emit(event string, data any, sel Selector) {
	frame, err := encode(event, data)
	if err != nil {
		r.logger.Error("encode failed", "event", event, "error", err)
		return
	}
	r.deliver(frame, sel)
}

func (r *Router) deliver(frame []byte, sel Selector) {
	r.directory.Deliver(sel, frame, r.logger)
}
