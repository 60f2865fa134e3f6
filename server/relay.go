package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/puyokura/housechat/model"
)

// RelayOptions configures the relay around an already bound listener.
type RelayOptions struct {
	Protocol model.Protocol
	// ServerAddr - origin address stamped on system announcements.
	ServerAddr string
	// DrainTimeout - how long Serve waits for sessions after shutdown, zero means no wait.
	DrainTimeout time.Duration
	Accounts     *Store
	Logger       *slog.Logger
}

// Relay accepts chat connections and runs one session per connection over a shared hub.
type Relay struct {
	listener net.Listener
	hub      *Hub
	registry *registry
	opts     RelayOptions
	logger   *slog.Logger

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func NewRelay(listener net.Listener, hub *Hub, opts RelayOptions) (*Relay, error) {
	if listener == nil {
		return nil, errors.New("relay: listener is nil")
	}
	if hub == nil {
		return nil, errors.New("relay: hub is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ServerAddr == "" {
		opts.ServerAddr = listener.Addr().String()
	}
	return &Relay{
		listener: listener,
		hub:      hub,
		registry: newRegistry(),
		opts:     opts,
		logger:   logger,
	}, nil
}

// Addr returns the listening address.
func (r *Relay) Addr() net.Addr {
	return r.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then closes the hub and
// waits up to DrainTimeout for running sessions.
func (r *Relay) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		r.listener.Close()
	})
	defer stop()

	r.logger.Info("Server is ready to accept connections", slog.String("addr", r.listener.Addr().String()))

	var delay time.Duration
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				r.shutdown()
				return err
			}
			// back off like net/http on transient accept errors
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else if delay *= 2; delay > time.Second {
				delay = time.Second
			}
			r.logger.Error("Accept failed", slog.Any("error", err), slog.Duration("retry_in", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		delay = 0
		r.logger.Info("Accepted new connection", slog.String("remote", conn.RemoteAddr().String()))
		r.ServeConn(ctx, newTCPConn(conn), "tcp")
	}

	r.logger.Info("Shutdown signal received, terminating server.")
	r.shutdown()
	return nil
}

// ServeConn runs a session for conn in the background.
// After shutdown has begun the connection is closed immediately.
func (r *Relay) ServeConn(ctx context.Context, conn lineConn, transport string) {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		conn.Close()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	s := r.newSession(conn, transport)
	go func() {
		defer r.wg.Done()
		r.runSession(ctx, s)
	}()
}

func (r *Relay) runSession(ctx context.Context, s *Session) {
	remote := s.conn.RemoteAddr()
	if err := s.Run(ctx); err != nil && !errors.Is(err, ErrSocketClosed) && !errors.Is(err, ErrBusClosed) {
		r.logger.Error("Client disconnected with an error", slog.String("remote", remote), slog.Any("error", err))
		return
	}
	r.logger.Info("Client handled successfully", slog.String("remote", remote))
}

func (r *Relay) newSession(conn lineConn, transport string) *Session {
	id := uuid.New()
	return &Session{
		id:         id,
		conn:       conn,
		transport:  transport,
		hub:        r.hub,
		accounts:   r.opts.Accounts,
		registry:   r.registry,
		proto:      r.opts.Protocol,
		serverAddr: r.opts.ServerAddr,
		logger: r.logger.With(
			slog.String("conn", id.String()),
			slog.String("remote", conn.RemoteAddr()),
			slog.String("transport", transport),
		),
		lines: make(chan inbound),
		done:  make(chan struct{}),
	}
}

func (r *Relay) shutdown() {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	r.hub.Close()
	if r.opts.DrainTimeout <= 0 {
		return
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("All sessions drained")
	case <-time.After(r.opts.DrainTimeout):
		r.logger.Warn("Drain timeout elapsed, abandoning sessions", slog.Int("active", r.registry.len()))
	}
}

// Sessions lists the signed-in sessions.
func (r *Relay) Sessions() []SessionInfo {
	return r.registry.snapshot()
}

// Kick disconnects every session signed in as username.
func (r *Relay) Kick(username string) int {
	return r.registry.kick(username)
}

// Announce publishes a system message to every session.
func (r *Relay) Announce(text string) error {
	return r.hub.Publish(r.opts.Protocol.SystemMessage(r.opts.ServerAddr, text))
}
