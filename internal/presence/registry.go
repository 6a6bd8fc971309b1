// Package presence maps a logical identity to its single active connection.
package presence

import "sync"

// Conn is the connection handle the registry routes events to. The websocket
// layer implements it; tests substitute fakes.
type Conn interface {
	// ID distinguishes connection instances, so that a stale disconnect
	// cannot unbind a newer connection for the same identity.
	ID() string

	// Send pushes a structured event to the peer. Best-effort: implementations
	// drop rather than block when the peer cannot keep up.
	Send(event string, payload any)

	// Close tears the underlying transport down. Used by the admin
	// force-logout path; a normal disconnect closes itself.
	Close()
}

// Registry tracks which identities are currently present and on which
// connection. At most one live connection per identity; binding a new one
// silently supersedes the old (last-bind-wins), without closing it.
//
// A Registry is constructed per server instance and injected, never shared as
// a package-level singleton.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Conn   // identity -> current connection
	idents map[string]string // connection ID -> identity
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]Conn),
		idents: make(map[string]string),
	}
}

// Bind registers conn as the active connection for identity, superseding any
// previous binding. Idempotent; no error condition.
func (r *Registry) Bind(identity string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[identity]; ok {
		delete(r.idents, old.ID())
	}
	r.conns[identity] = conn
	r.idents[conn.ID()] = identity
}

// Lookup returns the active connection for identity, if present.
func (r *Registry) Lookup(identity string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[identity]
	return conn, ok
}

// Unbind removes the presence entry for conn, but only if conn is still the
// current binding for its identity. A stale disconnect after a reconnect is a
// no-op. Returns the identity that became absent, or "" if nothing changed.
func (r *Registry) Unbind(conn Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.idents[conn.ID()]
	if !ok {
		return ""
	}
	current, ok := r.conns[identity]
	if !ok || current.ID() != conn.ID() {
		return ""
	}
	delete(r.conns, identity)
	delete(r.idents, conn.ID())
	return identity
}

// Each calls fn for a snapshot of every present (identity, connection) pair.
// fn runs without the registry lock held, so it may call back into the
// registry.
func (r *Registry) Each(fn func(identity string, conn Conn)) {
	r.mu.RLock()
	type entry struct {
		identity string
		conn     Conn
	}
	snapshot := make([]entry, 0, len(r.conns))
	for identity, conn := range r.conns {
		snapshot = append(snapshot, entry{identity, conn})
	}
	r.mu.RUnlock()

	for _, e := range snapshot {
		fn(e.identity, e.conn)
	}
}

// Count returns the number of present identities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
