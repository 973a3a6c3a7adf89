package transport

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"
)

const DefaultWriteTimeout = 10 * time.Second

// Conn is a TCP (or TLS) connection speaking one Framing.
//
// ReadMessage must only be called from one goroutine, and WriteMessage from
// one other goroutine; Close may be called from anywhere and more than once.
type Conn struct {
	id           string
	conn         net.Conn
	framing      Framing
	writeTimeout time.Duration

	reader  *bufio.Reader
	scanner *bufio.Scanner

	closeOnce sync.Once
	closeErr  error
}

type ConnOption func(*Conn)

// WithWriteTimeout bounds every write; zero disables the deadline.
func WithWriteTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.writeTimeout = d }
}

// NewConn wraps conn. id is used in logs and as the connection id.
func NewConn(id string, conn net.Conn, framing Framing, opts ...ConnOption) *Conn {
	c := &Conn{
		id:           id,
		conn:         conn,
		framing:      framing,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	switch framing {
	case FramingFrame:
		c.reader = bufio.NewReader(conn)
	default:
		c.framing = FramingLine
		c.scanner = bufio.NewScanner(conn)
		c.scanner.Buffer(make([]byte, 0, 4096), MaxLineLength)
	}
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Framing() Framing { return c.framing }

func (c *Conn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// ReadMessage blocks for the next inbound message, without its terminator.
func (c *Conn) ReadMessage() (string, error) {
	if c.framing == FramingFrame {
		payload, err := ReadFrame(c.reader)
		if err != nil {
			return "", err
		}
		return trimMessage(string(payload)), nil
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return trimMessage(c.scanner.Text()), nil
}

// WriteMessage sends msg. Lines get a trailing newline if msg lacks one;
// frames carry msg verbatim.
func (c *Conn) WriteMessage(msg string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	if c.framing == FramingFrame {
		return WriteFrame(c.conn, []byte(msg))
	}
	_, err := c.conn.Write([]byte(lineTerminated(msg)))
	return err
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.conn.Close() })
	return c.closeErr
}
