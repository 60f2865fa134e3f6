package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/puyokura/housechat/discovery"
	"github.com/puyokura/housechat/model"
)

// NetworkOptions configures the network task.
type NetworkOptions struct {
	Probe       discovery.ProbeConfig
	DialTimeout time.Duration
	Logger      *slog.Logger
}

// Network performs the actions issued by the multiplexer and reports back through events.
// Only Run touches the current connection; readers hand it back through dropped.
type Network struct {
	events  chan<- Event
	actions <-chan Action
	opts    NetworkOptions
	logger  *slog.Logger

	conn    *serverConn
	dropped chan *serverConn
}

// serverConn is one signed-in connection to the relay.
type serverConn struct {
	conn     net.Conn
	id       uuid.UUID
	username string
	writer   *bufio.Writer
	cancel   context.CancelFunc
}

func NewNetwork(events chan<- Event, actions <-chan Action, opts NetworkOptions) *Network {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return &Network{
		events:  events,
		actions: actions,
		opts:    opts,
		logger:  logger,
		dropped: make(chan *serverConn),
	}
}

// Run handles actions until a DisconnectAction arrives, the action channel closes or ctx ends.
func (n *Network) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		n.Disconnect()
	}()

	for {
		select {
		case a, ok := <-n.actions:
			if !ok {
				return
			}
			switch a := a.(type) {
			case DiscoverAction:
				go n.discover(ctx)
			case ConnectAction:
				n.connect(ctx, a)
			case SendAction:
				n.send(ctx, a.Text)
			case DisconnectAction:
				n.logger.Info("Disconnect requested")
				return
			}
		case c := <-n.dropped:
			if n.conn == c {
				n.conn = nil
			}
		case <-ctx.Done():
			return
		}
	}
}

func (n *Network) discover(ctx context.Context) {
	n.logger.Info("Searching for server", slog.String("broadcast", n.opts.Probe.BroadcastAddr))
	addr, err := discovery.Probe(ctx, n.opts.Probe)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		n.logger.Warn("Server discovery failed", slog.Any("error", err))
		n.emit(ctx, ErrorEvent{Err: err})
		return
	}
	n.logger.Info("Server found", slog.String("addr", addr.String()))
	n.emit(ctx, ServerFoundEvent{Addr: addr})
}

func (n *Network) connect(ctx context.Context, a ConnectAction) {
	if n.conn != nil {
		n.emit(ctx, ErrorEvent{Err: fmt.Errorf("%w: already connected", ErrConnect)})
		return
	}
	addr := a.Addr.String()
	n.logger.Info("Connecting", slog.String("addr", addr), slog.String("username", a.Credentials.Username))

	dialer := net.Dialer{Timeout: n.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		n.emit(ctx, ErrorEvent{Err: fmt.Errorf("%w: %v", ErrConnect, err)})
		return
	}

	connCtx, cancel := context.WithCancel(ctx)
	c := &serverConn{
		conn:     conn,
		id:       uuid.New(),
		username: a.Credentials.Username,
		writer:   bufio.NewWriter(conn),
		cancel:   cancel,
	}
	if err := c.writeLine(model.EncodeCredentials(a.Credentials)); err != nil {
		cancel()
		conn.Close()
		n.emit(ctx, ErrorEvent{Err: fmt.Errorf("%w: send credentials: %v", ErrConnect, err)})
		return
	}
	n.conn = c
	go n.readLoop(connCtx, c)
}

func (n *Network) send(ctx context.Context, text string) {
	c := n.conn
	if c == nil {
		n.emit(ctx, ErrorEvent{Err: ErrNotConnected})
		return
	}
	msg := model.Message{
		ID:             c.id,
		SenderAddr:     c.conn.LocalAddr().String(),
		SenderUsername: c.username,
		Payload:        text,
	}
	if err := c.writeLine(model.Encode(msg)); err != nil {
		n.logger.Warn("Send failed", slog.Any("error", err))
		n.emit(ctx, ErrorEvent{Err: fmt.Errorf("send message: %w", err)})
	}
}

// Disconnect closes the current connection, if any.
func (n *Network) Disconnect() {
	if n.conn != nil {
		n.conn.close()
		n.conn = nil
	}
}

// readLoop turns the first line into ConnectedEvent and the rest into ServerMessageEvents.
func (n *Network) readLoop(ctx context.Context, c *serverConn) {
	defer c.cancel()

	reader := model.NewLineReader(c.conn, model.MaxLineSize)
	welcomed := false
	var readErr error
	for {
		line, err := reader.ReadLine()
		if errors.Is(err, model.ErrLineTooLong) {
			n.logger.Warn("Dropping oversized line from server", slog.Any("error", err))
			continue
		}
		if err != nil {
			readErr = err
			break
		}
		msg, err := model.Decode(line)
		if err != nil {
			n.logger.Warn("Dropping malformed line from server", slog.Any("error", err))
			continue
		}
		var ev Event = ServerMessageEvent{Message: msg}
		if !welcomed {
			ev = ConnectedEvent{Welcome: msg}
			welcomed = true
		}
		if !n.emit(ctx, ev) {
			return
		}
	}
	if ctx.Err() != nil {
		// closed locally
		return
	}

	c.conn.Close()
	select {
	case n.dropped <- c:
	case <-ctx.Done():
		return
	}
	if !errors.Is(readErr, io.EOF) {
		n.logger.Warn("Connection lost", slog.Any("error", readErr))
		n.emit(ctx, ErrorEvent{Err: fmt.Errorf("%w: %v", ErrServerClosed, readErr)})
		return
	}
	n.logger.Info("Server closed connection")
	n.emit(ctx, ErrorEvent{Err: ErrServerClosed})
}

// emit blocks until the multiplexer takes ev or ctx ends.
func (n *Network) emit(ctx context.Context, ev Event) bool {
	select {
	case n.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *serverConn) writeLine(line []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := c.writer.Write(line); err != nil {
		return err
	}
	return c.writer.Flush()
}

func (c *serverConn) close() {
	c.cancel()
	c.conn.Close()
}
