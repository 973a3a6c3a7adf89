package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/bradenaw/juniper/xslices"
	"github.com/enjoys-in/airsend-calc/internal/calc"
	"github.com/enjoys-in/airsend-calc/internal/core/connector"
	"github.com/enjoys-in/airsend-calc/internal/core/persist"
	"github.com/enjoys-in/airsend-calc/internal/core/session"
	"github.com/enjoys-in/airsend-calc/internal/interfaces"
	"github.com/sirupsen/logrus"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionInUse    = errors.New("session has attached connections")
)

var logServices = logrus.WithField("pkg", "core/api/services")

type sessionService struct {
	sessions *session.Registry
	conns    *connector.Registry
	store    *persist.Store
}

// NewSessionService exposes the live registries to the admin API. store may
// be nil when nothing is persisted.
func NewSessionService(sessions *session.Registry, conns *connector.Registry, store *persist.Store) interfaces.SessionService {
	return &sessionService{sessions: sessions, conns: conns, store: store}
}

// List returns the live sessions in id order.
func (s *sessionService) List(ctx context.Context, filter interfaces.ListFilter) []interfaces.SessionSummary {
	summaries := xslices.Map(s.sessions.IDs(), func(id int) interfaces.SessionSummary {
		sess, ok := s.sessions.Find(id)
		if !ok {
			// deleted after IDs was taken
			return interfaces.SessionSummary{ID: -1}
		}
		return s.summarize(sess)
	})

	return xslices.Filter(summaries, func(sum interfaces.SessionSummary) bool {
		if sum.ID < 0 {
			return false
		}
		return !filter.OnlyAttached || sum.Attached > 0
	})
}

func (s *sessionService) Get(ctx context.Context, id int) (interfaces.SessionDetail, error) {
	sess, ok := s.sessions.Find(id)
	if !ok {
		return interfaces.SessionDetail{}, fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	return interfaces.SessionDetail{
		SessionSummary: s.summarize(sess),
		Rendered:       sess.Render(),
	}, nil
}

// Delete drops an idle session from memory and from the store.
func (s *sessionService) Delete(ctx context.Context, id int) error {
	if _, ok := s.sessions.Find(id); !ok {
		return fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	if n := s.conns.CountAttached(id); n > 0 {
		return fmt.Errorf("%w: %d attached to session %d", ErrSessionInUse, n, id)
	}
	if !s.sessions.Delete(id) {
		return fmt.Errorf("%w: %d", ErrSessionNotFound, id)
	}
	if s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, id); err != nil {
		logServices.WithError(err).WithField("session", id).Error("Session removed from memory but not from store")
		return err
	}
	return nil
}

func (s *sessionService) Stats(ctx context.Context) interfaces.Stats {
	return interfaces.Stats{
		Sessions:           s.sessions.Len(),
		SessionCapacity:    s.sessions.Capacity(),
		Connections:        s.conns.Count(),
		ConnectionCapacity: s.conns.Capacity(),
	}
}

func (s *sessionService) summarize(sess *session.Session) interfaces.SessionSummary {
	vars := sess.Snapshot()
	return interfaces.SessionSummary{
		ID:        sess.ID,
		Variables: formatVariables(&vars),
		Attached:  s.conns.CountAttached(sess.ID),
	}
}

// formatVariables maps each used letter to its wire formatting.
func formatVariables(v *calc.Variables) map[string]string {
	out := make(map[string]string, v.Count())
	for i, used := range v.Used {
		if used {
			out[string(calc.Letter(i))] = calc.FormatValue(v.Values[i])
		}
	}
	return out
}
