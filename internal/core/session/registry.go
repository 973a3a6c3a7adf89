// Package session keeps the live sessions of the server: a bounded map from
// session id to the variables of that session, safe for concurrent use by
// every connection goroutine.
package session

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/enjoys-in/airsend-calc/internal/calc"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
)

const (
	DefaultCapacity = 128
	DefaultIDRange  = 10000
)

var (
	ErrCapacity  = errors.New("session registry is full")
	ErrExists    = errors.New("session already exists")
	ErrInvalidID = errors.New("session id out of range")
)

var logRegistry = logrus.WithField("pkg", "core/session")

// Registry maps session ids to sessions. Inserts and deletes take the write
// lock; lookups share the read lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int]*Session
	capacity int
	idRange  int
	rnd      *rand.Rand
}

type Option func(*Registry)

// WithCapacity bounds the number of sessions held at once.
func WithCapacity(n int) Option {
	return func(r *Registry) { r.capacity = n }
}

// WithIDRange sets the exclusive upper bound of session ids.
func WithIDRange(n int) Option {
	return func(r *Registry) { r.idRange = n }
}

// WithRand replaces the source used to pick fresh ids.
func WithRand(rnd *rand.Rand) Option {
	return func(r *Registry) { r.rnd = rnd }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[int]*Session),
		capacity: DefaultCapacity,
		idRange:  DefaultIDRange,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rnd == nil {
		r.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r
}

// ValidID reports whether id lies in [0, IDRange).
func (r *Registry) ValidID(id int) bool {
	return id >= 0 && id < r.idRange
}

func (r *Registry) Capacity() int { return r.capacity }

func (r *Registry) IDRange() int { return r.idRange }

// Insert creates an empty session under id.
func (r *Registry) Insert(id int) (*Session, error) {
	return r.Restore(id, calc.Variables{})
}

// Restore creates a session under id holding vars. It is how persisted
// sessions come back at startup.
func (r *Registry) Restore(id int, vars calc.Variables) (*Session, error) {
	if !r.ValidID(id) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(id, vars)
}

func (r *Registry) insertLocked(id int, vars calc.Variables) (*Session, error) {
	if _, ok := r.sessions[id]; ok {
		return nil, fmt.Errorf("%w: %d", ErrExists, id)
	}
	if len(r.sessions) >= r.capacity {
		return nil, ErrCapacity
	}
	s := newSession(id, vars)
	r.sessions[id] = s
	return s, nil
}

// Find returns the session registered under id.
func (r *Registry) Find(id int) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// FindOrCreate attaches to id, creating the session when it is not
// registered yet. created reports which of the two happened.
func (r *Registry) FindOrCreate(id int) (s *Session, created bool, err error) {
	if s, ok := r.Find(id); ok {
		return s, false, nil
	}
	if !r.ValidID(id) {
		return nil, false, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// another connection may have created it between the two locks
	if s, ok := r.sessions[id]; ok {
		return s, false, nil
	}
	s, err = r.insertLocked(id, calc.Variables{})
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Create registers a session under a random id that is not in use.
func (r *Registry) Create() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.capacity || len(r.sessions) >= r.idRange {
		return nil, ErrCapacity
	}
	for {
		id := r.rnd.Intn(r.idRange)
		if _, taken := r.sessions[id]; taken {
			continue
		}
		s, err := r.insertLocked(id, calc.Variables{})
		if err == nil {
			logRegistry.WithField("session", id).Debug("Created session")
		}
		return s, err
	}
}

// Delete drops the session registered under id. It reports whether there
// was one.
func (r *Registry) Delete(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	logRegistry.WithField("session", id).Info("Deleted session")
	return true
}

// IDs returns the registered session ids in ascending order.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	ids := maps.Keys(r.sessions)
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
