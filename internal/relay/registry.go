package relay

import (
	"fmt"
	"sync"

	"github.com/pscheid92/wsbroker/internal/domain"
)

type member struct {
	conn     domain.Connection
	liveness domain.Liveness
}

// Registry is the authoritative set of live connections, keyed by identity.
// Liveness state lives here so it is only ever mutated under the registry lock.
type Registry struct {
	mu      sync.RWMutex
	members map[string]*member
}

func NewRegistry() *Registry {
	return &Registry{members: make(map[string]*member)}
}

// Register adds conn in the Alive state.
func (r *Registry) Register(conn domain.Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[conn.ID()]; exists {
		return fmt.Errorf("register %s: %w", conn.ID(), domain.ErrDuplicateIdentity)
	}
	r.members[conn.ID()] = &member{conn: conn, liveness: domain.Alive}
	return nil
}

// Deregister removes conn and reports whether it was present. Removing an absent
// connection is a no-op so concurrent close and eviction can race safely.
func (r *Registry) Deregister(conn domain.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lookup(conn); !ok {
		return false
	}
	delete(r.members, conn.ID())
	return true
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Snapshot returns the current members in no particular order.
func (r *Registry) Snapshot() []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]domain.Connection, 0, len(r.members))
	for _, m := range r.members {
		conns = append(conns, m.conn)
	}
	return conns
}

// ForEach applies fn to a snapshot of the members. fn may register or
// deregister connections.
func (r *Registry) ForEach(fn func(conn domain.Connection)) {
	for _, conn := range r.Snapshot() {
		fn(conn)
	}
}

// State returns the liveness of conn, or false if it is not registered.
func (r *Registry) State(conn domain.Connection) (domain.Liveness, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.lookup(conn)
	if !ok {
		return domain.Alive, false
	}
	return m.liveness, true
}

// MarkAlive records a probe acknowledgment.
func (r *Registry) MarkAlive(conn domain.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.lookup(conn)
	if !ok {
		return false
	}
	m.liveness = domain.Alive
	return true
}

// Suspects returns the members that have not acknowledged the previous probe.
func (r *Registry) Suspects() []domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []domain.Connection
	for _, m := range r.members {
		if m.liveness == domain.Suspect {
			conns = append(conns, m.conn)
		}
	}
	return conns
}

// EvictSuspect removes conn only if it is still Suspect. A pong that arrived
// after Suspects was taken keeps the connection.
func (r *Registry) EvictSuspect(conn domain.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.lookup(conn)
	if !ok || m.liveness != domain.Suspect {
		return false
	}
	delete(r.members, conn.ID())
	return true
}

// MarkAllSuspect flips every member to Suspect and returns them for probing.
func (r *Registry) MarkAllSuspect() []domain.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]domain.Connection, 0, len(r.members))
	for _, m := range r.members {
		m.liveness = domain.Suspect
		conns = append(conns, m.conn)
	}
	return conns
}

// lookup matches on both identity and instance, so a rejected duplicate never
// touches the entry of the connection it collided with. Must be called with mu held.
func (r *Registry) lookup(conn domain.Connection) (*member, bool) {
	m, ok := r.members[conn.ID()]
	if !ok || m.conn != conn {
		return nil, false
	}
	return m, true
}
