package relay

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// Conn is a live transport connection the router can deliver frames to.
type Conn interface {
	ID() string
	Send(data []byte) error
}

// Selector decides whether the connection with the given id receives a frame.
type Selector func(id string) bool

// All selects every connection.
func All() Selector {
	return func(string) bool { return true }
}

// AllExcept selects every connection but one.
func AllExcept(id string) Selector {
	return func(candidate string) bool { return candidate != id }
}

// Only selects a single connection.
func Only(id string) Selector {
	return func(candidate string) bool { return candidate == id }
}

// Directory is the set of open connections, joined or not, in connect order.
type Directory struct {
	mu    sync.RWMutex
	conns []Conn
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{}
}

// Add inserts the connection. Adding an id twice replaces the earlier entry.
func (d *Directory) Add(conn Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.conns = lo.Reject(d.conns, func(c Conn, _ int) bool { return c.ID() == conn.ID() })
	d.conns = append(d.conns, conn)
}

// Remove drops the connection with the given id and reports whether it was present.
func (d *Directory) Remove(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	before := len(d.conns)
	d.conns = lo.Reject(d.conns, func(c Conn, _ int) bool { return c.ID() == id })
	return len(d.conns) != before
}

// Len returns the number of open connections.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}

// Select returns the connections matched by sel.
func (d *Directory) Select(sel Selector) []Conn {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return lo.Filter(d.conns, func(c Conn, _ int) bool { return sel(c.ID()) })
}

// Deliver hands the frame to every selected connection and returns how many
// accepted it. A failed send is logged and does not stop the others.
func (d *Directory) Deliver(sel Selector, frame []byte, logger *slog.Logger) int {
	delivered := 0
	for _, conn := range d.Select(sel) {
		if err := conn.Send(frame); err != nil {
			logger.Warn("delivery failed", "connectionId", conn.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
