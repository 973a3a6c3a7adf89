// Package persist saves session variables so they survive a restart.
//
// A Backend stores opaque records keyed by session id; Store layers the
// calc record codec on top and knows how to refill a session registry.
package persist

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/enjoys-in/airsend-calc/internal/calc"
	"github.com/enjoys-in/airsend-calc/internal/core/session"
	"github.com/enjoys-in/airsend-calc/internal/metrics"
	"github.com/sirupsen/logrus"
)

// ErrStoreClosed is returned by backends after Close.
var ErrStoreClosed = errors.New("session store is closed")

var logPersist = logrus.WithField("pkg", "core/persist")

// Backend is a place to keep session records. Implementations must be safe
// for concurrent use.
type Backend interface {
	// Save overwrites the record for id.
	Save(ctx context.Context, id int, data []byte) error
	// Load returns (nil, nil) when nothing is stored for id.
	Load(ctx context.Context, id int) ([]byte, error)
	// Delete does not fail for a missing record.
	Delete(ctx context.Context, id int) error
	// List returns the ids that have a record, in no particular order.
	List(ctx context.Context) ([]int, error)
	Close() error
}

// Store persists session variables through a Backend.
type Store struct {
	backend Backend
	metrics *metrics.Metrics
}

func NewStore(backend Backend, m *metrics.Metrics) *Store {
	return &Store{backend: backend, metrics: m}
}

// Backend exposes the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// Save writes the full state of one session, replacing what was there.
func (s *Store) Save(ctx context.Context, id int, vars calc.Variables) error {
	if err := s.backend.Save(ctx, id, calc.Encode(&vars)); err != nil {
		s.metrics.PersistError("save")
		return fmt.Errorf("save session %d: %w", id, err)
	}
	return nil
}

// Load reads one session. found is false when nothing is stored.
func (s *Store) Load(ctx context.Context, id int) (vars calc.Variables, found bool, err error) {
	data, err := s.backend.Load(ctx, id)
	if err != nil {
		s.metrics.PersistError("load")
		return vars, false, fmt.Errorf("load session %d: %w", id, err)
	}
	if data == nil {
		return vars, false, nil
	}
	vars, err = calc.Decode(data)
	if err != nil {
		s.metrics.PersistError("load")
		return vars, false, fmt.Errorf("load session %d: %w", id, err)
	}
	return vars, true, nil
}

func (s *Store) Delete(ctx context.Context, id int) error {
	if err := s.backend.Delete(ctx, id); err != nil {
		s.metrics.PersistError("delete")
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// LoadReport describes what LoadAll did.
type LoadReport struct {
	Loaded  int
	Skipped int // records outside the registry's id range
	Failed  int // unreadable records or registry capacity exhausted
}

// LoadAll restores every stored session whose id is in the registry's range.
// Broken records and capacity overflow are logged and counted but do not
// stop the load; only failing to enumerate the backend is an error.
func (s *Store) LoadAll(ctx context.Context, reg *session.Registry) (LoadReport, error) {
	var report LoadReport

	ids, err := s.backend.List(ctx)
	if err != nil {
		s.metrics.PersistError("list")
		return report, fmt.Errorf("list sessions: %w", err)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if !reg.ValidID(id) {
			report.Skipped++
			continue
		}
		log := logPersist.WithField("session", id)

		vars, found, err := s.Load(ctx, id)
		if err != nil {
			report.Failed++
			log.WithError(err).Error("Failed to load session")
			continue
		}
		if !found {
			continue
		}
		if _, err := reg.Restore(id, vars); err != nil {
			report.Failed++
			log.WithError(err).Error("Failed to register loaded session")
			continue
		}
		report.Loaded++
	}

	s.metrics.SessionsLoaded(report.Loaded)
	return report, nil
}
