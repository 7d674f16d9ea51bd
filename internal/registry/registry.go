// Package registry keeps track of which connection belongs to which
// participant in the shared room.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
)

// ErrDuplicateRegistration is returned when a connection that already joined
// tries to register a second time.
var ErrDuplicateRegistration = errors.New("connection already registered")

// Participant is the identity bound to a connection after a successful join.
type Participant struct {
	ConnectionID string
	DisplayName  string
	JoinedAt     time.Time
}

// Registry maps connection ids to participants. Entries are kept in join order.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Participant
	order   []string
	now     func() time.Time
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]Participant),
		now:     time.Now,
	}
}

// Register records a participant for the connection.
func (r *Registry) Register(connectionID, displayName string) (Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[connectionID]; exists {
		return Participant{}, fmt.Errorf("register %s: %w", connectionID, ErrDuplicateRegistration)
	}

	p := Participant{
		ConnectionID: connectionID,
		DisplayName:  displayName,
		JoinedAt:     r.now(),
	}
	r.entries[connectionID] = p
	r.order = append(r.order, connectionID)
	return p, nil
}

// Lookup returns the participant bound to the connection, if any.
func (r *Registry) Lookup(connectionID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.entries[connectionID]
	return p, ok
}

// Remove deletes and returns the participant bound to the connection.
// Removing a connection that never joined is a no-op.
func (r *Registry) Remove(connectionID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.entries[connectionID]
	if !ok {
		return Participant{}, false
	}
	delete(r.entries, connectionID)
	r.order = lo.Without(r.order, connectionID)
	return p, true
}

// DisplayNames returns a snapshot of the present display names in join order.
func (r *Registry) DisplayNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Map(r.order, func(id string, _ int) string {
		return r.entries[id].DisplayName
	})
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Reset drops every entry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]Participant)
	r.order = nil
}
