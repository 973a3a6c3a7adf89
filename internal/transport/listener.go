package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	DefaultAcceptRate  = 100
	DefaultAcceptBurst = 20

	acceptRetryMin = 5 * time.Millisecond
	acceptRetryMax = time.Second
)

// Handler serves one accepted connection. It owns conn until it returns.
type Handler func(ctx context.Context, conn *Conn)

// Listener accepts TCP (optionally TLS) connections and runs a Handler for
// each on its own goroutine.
type Listener struct {
	addr    string
	framing Framing
	tls     *tls.Config
	limiter *rate.Limiter
	handler Handler

	mu sync.Mutex
	ln net.Listener
	wg sync.WaitGroup
}

type ListenerOption func(*Listener)

// WithTLS serves TLS on the listener.
func WithTLS(cfg *tls.Config) ListenerOption {
	return func(l *Listener) { l.tls = cfg }
}

// WithAcceptRate limits new connections per second; zero or less disables
// the limit.
func WithAcceptRate(perSecond float64, burst int) ListenerOption {
	return func(l *Listener) {
		if perSecond <= 0 {
			l.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func NewListener(addr string, framing Framing, handler Handler, opts ...ListenerOption) *Listener {
	l := &Listener{
		addr:    addr,
		framing: framing,
		handler: handler,
		limiter: rate.NewLimiter(DefaultAcceptRate, DefaultAcceptBurst),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Listen binds the address. Bind failures are returned so the caller can
// exit with a diagnostic.
func (l *Listener) Listen() (net.Addr, error) {
	var (
		ln  net.Listener
		err error
	)
	if l.tls != nil {
		ln, err = tls.Listen("tcp", l.addr, l.tls)
	} else {
		ln, err = net.Listen("tcp", l.addr)
	}
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.ln = ln
	l.mu.Unlock()
	return ln.Addr(), nil
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed, then waits for the running handlers. Other accept errors are
// logged and retried. Listen must have been called.
func (l *Listener) Serve(ctx context.Context) error {
	l.mu.Lock()
	ln := l.ln
	l.mu.Unlock()
	if ln == nil {
		return errors.New("listener is not bound")
	}

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer l.wg.Wait()

	retry := newAcceptBackoff()

	for {
		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			delay := retry.NextBackOff()
			logTransport.WithError(err).WithField("retry_in", delay).Warn("Socket accept failed")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}
		retry.Reset()

		c := NewConn(uuid.NewString(), conn, l.framing)
		logTransport.WithFields(logrus.Fields{
			"conn":   c.ID(),
			"remote": c.RemoteAddr(),
		}).Debug("Accepted connection")

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.handler(ctx, c)
		}()
	}
}

// newAcceptBackoff spaces out retries after failed accepts (out of file
// descriptors, aborted handshakes) without ever giving up.
func newAcceptBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = acceptRetryMin
	b.MaxInterval = acceptRetryMax
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Close stops accepting. Running handlers are not interrupted.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}
