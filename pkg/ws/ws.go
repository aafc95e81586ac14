// Package ws streams JSON messages to a client over a WebSocket using
// gorilla/websocket. It is the WebSocket counterpart of pkg/sse:
//
//	conn, err := ws.Upgrade(w, r)
//	if err != nil {
//	    return // Upgrade already answered the request
//	}
//	defer conn.Close()
//	conn.Send(body)
//
// Inbound messages are read and discarded; the read loop only exists to
// process control frames and notice when the client goes away.
package ws

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/datajunction/djqs/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 4 * 1024
)

var (
	originMu    sync.RWMutex
	checkOrigin = func(*http.Request) bool { return true }
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		originMu.RLock()
		defer originMu.RUnlock()
		return checkOrigin(r)
	},
}

// SetCheckOrigin replaces the default (allow-all) origin checker.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	originMu.Lock()
	checkOrigin = fn
	originMu.Unlock()
}

// AllowOrigins accepts requests without an Origin header and those whose
// Origin is listed. "*" allows every origin.
func AllowOrigins(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// ErrClosed is returned by Send after the connection has gone away.
var ErrClosed = errors.New("ws: connection closed")

// Conn is a server-side WebSocket connection that only writes.
type Conn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// Upgrade switches the request to the WebSocket protocol and starts the
// read loop. On failure the upgrader has already written an HTTP error.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	c := &Conn{conn: conn, done: make(chan struct{})}
	go c.readPump()
	return c, nil
}

func (c *Conn) readPump() {
	defer c.shutdown()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("ws: unexpected close", "error", err)
			}
			return
		}
	}
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Send writes v as a JSON text message.
func (c *Conn) Send(v any) error {
	if c.IsClosed() {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Ping sends a ping control frame; the pong extends the read deadline.
func (c *Conn) Ping() error {
	if c.IsClosed() {
		return ErrClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Done is closed once the client disconnects or Close is called.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// IsClosed reports whether the connection has gone away.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close sends a normal closure frame and releases the connection.
func (c *Conn) Close() error {
	if !c.IsClosed() {
		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.writeMu.Unlock()
	}
	c.shutdown()
	return nil
}
