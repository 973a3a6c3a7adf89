// Package browser runs the per-connection protocol: join a session, then
// feed command lines to it until the client leaves.
package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/enjoys-in/airsend-calc/internal/calc"
	"github.com/enjoys-in/airsend-calc/internal/core/connector"
	"github.com/enjoys-in/airsend-calc/internal/core/persist"
	"github.com/enjoys-in/airsend-calc/internal/core/session"
	"github.com/enjoys-in/airsend-calc/internal/metrics"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// NewSession is the join request for a fresh session.
const NewSession = -1

var ErrRateLimited = errors.New("command rate exceeded")

var logBrowser = logrus.WithField("pkg", "core/browser")

// Transport is one client connection delivering discrete messages.
type Transport interface {
	ReadMessage() (string, error)
	WriteMessage(msg string) error
	Close() error
	RemoteAddr() string
}

// Deps are the shared pieces every connection works against.
type Deps struct {
	Sessions    *session.Registry
	Conns       *connector.Registry
	Broadcaster *connector.Broadcaster
	// Store may be nil, in which case nothing is persisted.
	Store   *persist.Store
	Metrics *metrics.Metrics
}

type Handler struct {
	Deps

	queueSize    int
	commandRate  rate.Limit
	commandBurst int
}

type Option func(*Handler)

// WithQueueSize sets the per-connection outbound queue length.
func WithQueueSize(n int) Option {
	return func(h *Handler) { h.queueSize = n }
}

// WithCommandRate limits each connection to perSecond commands with the
// given burst. Zero disables the limit.
func WithCommandRate(perSecond float64, burst int) Option {
	return func(h *Handler) {
		h.commandRate = rate.Limit(perSecond)
		h.commandBurst = burst
	}
}

func NewHandler(deps Deps, opts ...Option) *Handler {
	if deps.Broadcaster == nil {
		deps.Broadcaster = connector.NewBroadcaster(deps.Conns, deps.Metrics)
	}
	h := &Handler{Deps: deps, queueSize: connector.DefaultQueueSize}
	for _, opt := range opts {
		opt(h)
	}
	if h.commandBurst <= 0 {
		h.commandBurst = 1
	}
	return h
}

// Serve runs the protocol on t until the client exits, the connection
// fails or ctx is cancelled. t is closed when Serve returns. A clean
// disconnect returns nil.
func (h *Handler) Serve(ctx context.Context, t Transport) error {
	id := transportID(t)
	log := logBrowser.WithFields(logrus.Fields{
		"conn":   id,
		"remote": t.RemoteAddr(),
	})

	out := connector.NewOutbox(id, t, h.queueSize)
	stop := context.AfterFunc(ctx, func() { _ = t.Close() })
	defer stop()

	slot, err := h.Conns.Claim(out)
	if err != nil {
		h.Metrics.ConnectionDenied("capacity")
		log.WithError(err).Warn("Refusing connection")
		_ = out.Send(session.ErrorMessage)
		_ = out.Close()
		return err
	}
	h.Metrics.ConnectionAccepted()
	log = log.WithField("slot", slot)
	log.Debug("Connection claimed slot")

	defer func() {
		h.Conns.Release(slot)
		_ = out.Close()
		log.Debug("Connection closed")
	}()

	s, err := h.join(ctx, t, log)
	if err != nil {
		if errors.Is(err, session.ErrCapacity) {
			h.Metrics.ConnectionDenied("sessions")
			log.WithError(err).Warn("Cannot join session")
			_ = out.Send(session.ErrorMessage)
			return err
		}
		return disconnect(err)
	}
	log = log.WithField("session", s.ID)

	// The id reply is queued before the slot is attached, so it reaches
	// the client ahead of any broadcast for the session.
	if err := out.Send(strconv.Itoa(s.ID)); err != nil {
		return err
	}
	if err := h.Conns.Attach(slot, s.ID); err != nil {
		return err
	}
	log.Info("Client joined session")

	return h.active(ctx, t, s, log)
}

func (h *Handler) join(ctx context.Context, t Transport, log *logrus.Entry) (*session.Session, error) {
	msg, err := t.ReadMessage()
	if err != nil {
		return nil, err
	}
	requested := h.parseJoin(msg, log)

	var (
		s       *session.Session
		created bool
	)
	if requested == NewSession {
		s, err = h.Sessions.Create()
		created = err == nil
	} else {
		s, created, err = h.Sessions.FindOrCreate(requested)
	}
	if err != nil {
		return nil, fmt.Errorf("join session: %w", err)
	}

	if created {
		log.WithField("session", s.ID).Info("Created session")
		h.save(ctx, s, log)
	}
	return s, nil
}

// parseJoin reads the requested session id. Anything that is not an id in
// range asks for a new session.
func (h *Handler) parseJoin(msg string, log *logrus.Entry) int {
	id, err := strconv.Atoi(strings.TrimSpace(msg))
	if err != nil {
		log.WithField("request", msg).Warn("Unreadable session id, creating a new session")
		return NewSession
	}
	if id != NewSession && !h.Sessions.ValidID(id) {
		log.WithField("request", id).Warn("Session id out of range, creating a new session")
		return NewSession
	}
	return id
}

func (h *Handler) active(ctx context.Context, t Transport, s *session.Session, log *logrus.Entry) error {
	var limiter *rate.Limiter
	if h.commandRate > 0 {
		limiter = rate.NewLimiter(h.commandRate, h.commandBurst)
	}
	publish := h.publisher(ctx, s, log)

	for {
		msg, err := t.ReadMessage()
		if err != nil {
			return disconnect(err)
		}

		switch msg {
		case "EXIT", "exit":
			log.Info("Client left")
			return nil
		case "":
			continue
		}

		started := time.Now()
		if limiter != nil && !limiter.Allow() {
			if err := s.Reject(ErrRateLimited, publish); err != nil {
				log.WithError(err).Error("Failed to publish rejection")
			}
			h.Metrics.Command("limited", started)
			continue
		}

		res, err := s.Commit(msg, publish)
		if err != nil {
			log.WithError(err).Error("Failed to persist session")
		}
		if res.Accepted {
			h.Metrics.Command("accepted", started)
		} else {
			h.Metrics.Command("rejected", started)
		}
	}
}

// publisher broadcasts a result to the whole session and saves accepted
// state. It runs under the session's command turn.
func (h *Handler) publisher(ctx context.Context, s *session.Session, log *logrus.Entry) func(session.Result) error {
	return func(res session.Result) error {
		h.Broadcaster.Broadcast(s.ID, res.Message)
		if !res.Accepted {
			log.WithError(res.Err).Debug("Rejected command")
			return nil
		}
		if h.Store == nil {
			return nil
		}
		return h.Store.Save(context.WithoutCancel(ctx), s.ID, res.Vars)
	}
}

func (h *Handler) save(ctx context.Context, s *session.Session, log *logrus.Entry) {
	if h.Store == nil {
		return
	}
	err := s.Persist(func(vars calc.Variables) error {
		return h.Store.Save(context.WithoutCancel(ctx), s.ID, vars)
	})
	if err != nil {
		log.WithError(err).Error("Failed to persist session")
	}
}

func transportID(t Transport) string {
	if named, ok := t.(interface{ ID() string }); ok && named.ID() != "" {
		return named.ID()
	}
	return uuid.NewString()
}

// disconnect maps the ways a peer goes away to a nil error.
func disconnect(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
