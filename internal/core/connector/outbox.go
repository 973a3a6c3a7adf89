package connector

import (
	"errors"
	"sync"
)

const DefaultQueueSize = 64

var (
	ErrQueueFull = errors.New("outbox queue is full")
	ErrClosed    = errors.New("outbox is closed")
)

// Writer is the transport side of a connection.
type Writer interface {
	WriteMessage(msg string) error
	Close() error
}

// Outbox is a Conn that decouples senders from the peer: Send only queues,
// and a dedicated goroutine performs the writes. A peer that stops reading
// fills its queue, after which further sends fail and the outbox closes the
// transport so the reading side of the connection unblocks and exits.
type Outbox struct {
	id    string
	w     Writer
	queue chan string

	mu     sync.Mutex
	closed bool

	closeOnce sync.Once
	closeErr  error

	done chan struct{}
	err  error
}

// NewOutbox starts the writer goroutine for w.
func NewOutbox(id string, w Writer, size int) *Outbox {
	if size <= 0 {
		size = DefaultQueueSize
	}
	o := &Outbox{
		id:    id,
		w:     w,
		queue: make(chan string, size),
		done:  make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *Outbox) ID() string { return o.id }

// Send queues msg without blocking.
func (o *Outbox) Send(msg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	select {
	case o.queue <- msg:
		return nil
	default:
		o.closeLocked()
		go o.closeWriter()
		return ErrQueueFull
	}
}

// Close stops accepting messages, lets the writer flush what is queued and
// closes the transport. It is safe to call more than once.
func (o *Outbox) Close() error {
	o.mu.Lock()
	o.closeLocked()
	o.mu.Unlock()

	<-o.done
	return o.closeWriter()
}

// Done is closed once the writer goroutine has exited.
func (o *Outbox) Done() <-chan struct{} { return o.done }

// Err returns the write error that stopped the writer, if any.
func (o *Outbox) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

func (o *Outbox) closeLocked() {
	if o.closed {
		return
	}
	o.closed = true
	close(o.queue)
}

func (o *Outbox) closeWriter() error {
	o.closeOnce.Do(func() { o.closeErr = o.w.Close() })
	return o.closeErr
}

func (o *Outbox) run() {
	defer close(o.done)
	for msg := range o.queue {
		if o.err != nil {
			continue
		}
		if err := o.w.WriteMessage(msg); err != nil {
			o.err = err
			logBroadcast.WithError(err).WithField("conn", o.id).Debug("Write failed, dropping connection")
			o.mu.Lock()
			o.closeLocked()
			o.mu.Unlock()
			_ = o.closeWriter()
		}
	}
}
