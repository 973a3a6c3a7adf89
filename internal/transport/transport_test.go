package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte("a = 5")))
	assert.Equal(t, []byte{7, 0, 'a', ' ', '=', ' ', '5'}, buf.Bytes())

	payload, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, "a = 5", string(payload))
}

func TestFrame_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, nil))
	payload, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestFrame_Errors(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{1, 0}))
	assert.ErrorContains(t, err, "invalid frame length")

	_, err = ReadFrame(bytes.NewReader([]byte{9, 0, 'x'}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	err = WriteFrame(io.Discard, make([]byte, MaxFramePayload+1))
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.NoError(t, WriteFrame(io.Discard, make([]byte, MaxFramePayload)))
}

func TestParseFraming(t *testing.T) {
	f, err := ParseFraming("")
	require.NoError(t, err)
	assert.Equal(t, FramingLine, f)

	f, err = ParseFraming("FRAME")
	require.NoError(t, err)
	assert.Equal(t, FramingFrame, f)

	_, err = ParseFraming("xml")
	assert.ErrorIs(t, err, ErrUnknownFraming)
}

func TestConn_Line(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	c := NewConn("c1", server, FramingLine)
	defer c.Close()

	go func() {
		_, _ = client.Write([]byte("-1\r\na = 5\n\nEXIT\n"))
	}()
	for _, want := range []string{"-1", "a = 5", "", "EXIT"} {
		got, err := c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	reader := bufio.NewReader(client)
	go func() {
		_ = c.WriteMessage("4711")
		_ = c.WriteMessage("a = 5.000000\nb = 8.000000\n")
	}()
	for _, want := range []string{"4711\n", "a = 5.000000\n", "b = 8.000000\n"} {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
}

func TestConn_LineEOF(t *testing.T) {
	client, server := net.Pipe()
	c := NewConn("c2", server, FramingLine)
	defer c.Close()

	go func() {
		_, _ = client.Write([]byte("a = 1"))
		_ = client.Close()
	}()
	got, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "a = 1", got)

	_, err = c.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_Frame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	c := NewConn("c3", server, FramingFrame)
	defer c.Close()

	go func() { _ = WriteFrame(client, []byte("b = a + 3\n")) }()
	got, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "b = a + 3", got)

	go func() { _ = c.WriteMessage("ERROR") }()
	payload, err := ReadFrame(client)
	require.NoError(t, err)
	assert.Equal(t, "ERROR", string(payload))
}

func TestConn_CloseTwice(t *testing.T) {
	_, server := net.Pipe()
	c := NewConn("c4", server, FramingLine)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestListener_ServesUntilCancelled(t *testing.T) {
	echo := func(ctx context.Context, c *Conn) {
		defer c.Close()
		for {
			msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(strings.ToUpper(msg)); err != nil {
				return
			}
		}
	}

	l := NewListener("127.0.0.1:0", FramingLine, echo, WithAcceptRate(0, 0))
	addr, err := l.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- l.Serve(ctx) }()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	_, err = conn.Write([]byte("exit\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "EXIT\n", line)
	require.NoError(t, conn.Close())

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

// flakyListener fails its first Accept, then hands out conns until closed.
type flakyListener struct {
	conns  chan net.Conn
	closed chan struct{}
	once   sync.Once
	failed bool
}

func newFlakyListener() *flakyListener {
	return &flakyListener{conns: make(chan net.Conn, 1), closed: make(chan struct{})}
}

func (f *flakyListener) Accept() (net.Conn, error) {
	if !f.failed {
		f.failed = true
		return nil, &net.OpError{Op: "accept", Net: "tcp", Err: syscall.EMFILE}
	}
	select {
	case c := <-f.conns:
		return c, nil
	case <-f.closed:
		return nil, net.ErrClosed
	}
}

func (f *flakyListener) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *flakyListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func TestListener_AcceptErrorIsRetried(t *testing.T) {
	served := make(chan string, 1)
	l := NewListener("", FramingLine, func(_ context.Context, c *Conn) {
		msg, err := c.ReadMessage()
		if err == nil {
			served <- msg
		}
		_ = c.Close()
	}, WithAcceptRate(0, 0))
	fake := newFlakyListener()
	l.ln = fake

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()

	server, client := net.Pipe()
	fake.conns <- server
	go func() { _, _ = client.Write([]byte("hello\n")) }()

	select {
	case msg := <-served:
		assert.Equal(t, "hello", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("connection after a failed accept was not served")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	_ = client.Close()
}

func TestListener_ServeWithoutListen(t *testing.T) {
	l := NewListener("127.0.0.1:0", FramingLine, func(context.Context, *Conn) {})
	assert.Error(t, l.Serve(context.Background()))
}

func TestWebSocketHandler(t *testing.T) {
	got := make(chan string, 1)
	handler := WebSocketHandler(context.Background(), func(ctx context.Context, c *WSConn) {
		defer c.Close()
		msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		got <- msg
		_ = c.WriteMessage("a = 5.000000\n")
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("a = 5\n")))
	assert.Equal(t, "a = 5", <-got)

	kind, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, "a = 5.000000\n", string(data))
}

func TestWebSocketHandler_RemoteFromRealIP(t *testing.T) {
	remote := make(chan string, 1)
	handler := WebSocketHandler(context.Background(), func(ctx context.Context, c *WSConn) {
		remote <- c.RemoteAddr()
		_ = c.Close()
	})
	srv := httptest.NewServer(middleware.RealIP(handler))
	defer srv.Close()

	header := http.Header{"X-Forwarded-For": {"203.0.113.7, 10.0.0.1"}}
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.NoError(t, err)
	defer ws.Close()

	select {
	case got := <-remote:
		assert.Equal(t, "203.0.113.7", got)
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not served")
	}
}
