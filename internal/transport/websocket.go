package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var logTransport = logrus.WithField("pkg", "transport")

// WSConn carries one application message per WebSocket text message.
type WSConn struct {
	id           string
	ws           *websocket.Conn
	remote       string
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

func NewWSConn(id string, ws *websocket.Conn, remote string) *WSConn {
	return &WSConn{id: id, ws: ws, remote: remote, writeTimeout: DefaultWriteTimeout}
}

func (c *WSConn) ID() string { return c.id }

func (c *WSConn) RemoteAddr() string { return c.remote }

func (c *WSConn) ReadMessage() (string, error) {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			return "", err
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}
		return trimMessage(string(data)), nil
	}
}

func (c *WSConn) WriteMessage(msg string) error {
	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// WebSocketHandler upgrades requests and hands each connection to serve,
// which owns it until it returns. ctx bounds every served connection. The
// client address is r.RemoteAddr, so mount it behind middleware.RealIP to
// honour proxy headers.
func WebSocketHandler(ctx context.Context, serve func(context.Context, *WSConn)) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logTransport.WithError(err).WithField("remote", r.RemoteAddr).Warn("WebSocket upgrade failed")
			return
		}
		ws.SetReadLimit(MaxLineLength)

		serve(ctx, NewWSConn(uuid.NewString(), ws, r.RemoteAddr))
	}
}
