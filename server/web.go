package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/puyokura/housechat/model"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // LAN tool, any origin
	},
}

// wsConn carries one protocol line per websocket text frame.
type wsConn struct {
	conn   *websocket.Conn
	remote string
	done   chan struct{}
	once   sync.Once
}

func newWSConn(conn *websocket.Conn, remote string) *wsConn {
	c := &wsConn{conn: conn, remote: remote, done: make(chan struct{})}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return c
}

// ReadLine streams each frame so an oversized one is discarded without
// failing the connection.
func (c *wsConn) ReadLine() ([]byte, error) {
	for {
		typ, r, err := c.conn.NextReader()
		if err != nil {
			return nil, wsReadError(err)
		}
		if typ != websocket.TextMessage {
			continue
		}
		message, err := io.ReadAll(io.LimitReader(r, model.MaxLineSize+1))
		if err != nil {
			return nil, wsReadError(err)
		}
		if len(message) > model.MaxLineSize {
			if _, err := io.Copy(io.Discard, r); err != nil {
				return nil, wsReadError(err)
			}
			return nil, model.ErrLineTooLong
		}
		return model.TrimLine(message), nil
	}
}

func wsReadError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		errors.Is(err, net.ErrClosed) {
		return ErrSocketClosed
	}
	return err
}

// WriteLine is only called by the session loop, so frames never interleave with each other.
// Pings go through WriteControl which is safe alongside it.
func (c *wsConn) WriteLine(line []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, model.TrimLine(line))
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) keepAlive() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// NewWebHandler serves the landing page, the websocket gateway and the session list.
func NewWebHandler(ctx context.Context, relay *Relay, serverName string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
    <style>
        body { font-family: sans-serif; text-align: center; padding-top: 50px; }
        code { background: #f4f4f4; padding: 5px; border-radius: 5px; }
    </style>
</head>
<body>
    <h1>Welcome to %[1]s</h1>
    <p>Chat relay listening on <code>%[2]s</code>.</p>
    <p>Run the TUI client on the same network, it finds this server by itself.</p>
    <p>WebSocket clients connect to <code>/ws</code> and send credentials as the first frame.</p>
</body>
</html>
`, serverName, relay.Addr().String())
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("Websocket upgrade failed", slog.Any("error", err))
			return
		}
		c := newWSConn(conn, r.RemoteAddr)
		go c.keepAlive()
		logger.Info("Accepted new websocket connection", slog.String("remote", r.RemoteAddr))
		relay.ServeConn(ctx, c, "websocket")
	})

	mux.HandleFunc("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(relay.Sessions()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	return mux
}
