// Package connector tracks live client connections and fans session updates
// out to them.
package connector

import (
	"errors"
	"sync"
)

const DefaultCapacity = 128

// NoSession marks a claimed slot whose connection has not joined yet.
const NoSession = -1

var (
	ErrFull     = errors.New("connection table is full")
	ErrFreeSlot = errors.New("connection slot is not in use")
	ErrAttached = errors.New("connection already joined a session")
)

// Conn is a client connection as seen by the broadcaster.
type Conn interface {
	// ID identifies the connection in logs.
	ID() string
	// Send queues msg for delivery. It must not block on a slow peer.
	Send(msg string) error
	Close() error
}

type slot struct {
	inUse     bool
	conn      Conn
	sessionID int
}

// Registry is a fixed table of connection slots.
type Registry struct {
	mu    sync.RWMutex
	slots []slot
}

func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{slots: make([]slot, capacity)}
}

// Claim stores c in the first free slot and returns the slot number.
func (r *Registry) Claim(c Conn) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.slots {
		if !r.slots[i].inUse {
			r.slots[i] = slot{inUse: true, conn: c, sessionID: NoSession}
			return i, nil
		}
	}
	return -1, ErrFull
}

// Attach records the session a claimed slot has joined. A connection joins
// once for its lifetime.
func (r *Registry) Attach(id, sessionID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inRange(id) || !r.slots[id].inUse {
		return ErrFreeSlot
	}
	if r.slots[id].sessionID != NoSession {
		return ErrAttached
	}
	r.slots[id].sessionID = sessionID
	return nil
}

// Release frees the slot. It returns false when the slot was already free,
// so callers can tell the first release from a repeated one.
func (r *Registry) Release(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inRange(id) || !r.slots[id].inUse {
		return false
	}
	r.slots[id] = slot{sessionID: NoSession}
	return true
}

// Lookup returns the connection in a slot and the session it joined.
func (r *Registry) Lookup(id int) (Conn, int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.inRange(id) || !r.slots[id].inUse {
		return nil, NoSession, false
	}
	return r.slots[id].conn, r.slots[id].sessionID, true
}

// Attached returns the connections currently joined to sessionID.
func (r *Registry) Attached(sessionID int) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []Conn
	for _, s := range r.slots {
		if s.inUse && s.sessionID == sessionID {
			conns = append(conns, s.conn)
		}
	}
	return conns
}

// CountAttached returns how many connections are joined to sessionID.
func (r *Registry) CountAttached(sessionID int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.slots {
		if s.inUse && s.sessionID == sessionID {
			n++
		}
	}
	return n
}

// Count returns the number of claimed slots.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, s := range r.slots {
		if s.inUse {
			n++
		}
	}
	return n
}

func (r *Registry) Capacity() int { return len(r.slots) }

// CloseAll closes every claimed connection. Slots are left for their
// owners to release.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]Conn, 0, len(r.slots))
	for _, s := range r.slots {
		if s.inUse {
			conns = append(conns, s.conn)
		}
	}
	r.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

func (r *Registry) inRange(id int) bool {
	return id >= 0 && id < len(r.slots)
}
