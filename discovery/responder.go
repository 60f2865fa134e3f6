package discovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
)

// maxDatagram bounds the receive buffer; a discovery request is a few dozen bytes.
const maxDatagram = 1024

// ResponderConfig describes where the responder listens and what it advertises.
type ResponderConfig struct {
	// ListenAddr - UDP address to bind, normally ":<discovery port>" on all interfaces.
	ListenAddr string
	// Request - exact payload a client must send to receive a reply.
	Request []byte
	// AdvertiseHost - host part of the reply. Empty means the LAN-facing address of this machine.
	AdvertiseHost string
	// RelayPort - TCP port of the chat relay.
	RelayPort int
}

// Responder answers discovery requests with the relay's host:port.
type Responder struct {
	conn    *net.UDPConn
	request []byte
	reply   []byte
	logger  *slog.Logger
}

// NewResponder resolves the advertised address and binds the UDP socket.
// Both failures are fatal for discovery and are returned to the caller.
func NewResponder(cfg ResponderConfig, logger *slog.Logger) (*Responder, error) {
	if len(cfg.Request) == 0 {
		return nil, errors.New("discovery.NewResponder: request payload is empty")
	}
	if cfg.RelayPort <= 0 || cfg.RelayPort > 65535 {
		return nil, fmt.Errorf("discovery.NewResponder: invalid relay port (%d)", cfg.RelayPort)
	}

	host := cfg.AdvertiseHost
	if host == "" {
		ip, err := LocalIP()
		if err != nil {
			return nil, err
		}
		host = ip.String()
	}
	reply := net.JoinHostPort(host, strconv.Itoa(cfg.RelayPort))
	if _, err := netip.ParseAddrPort(reply); err != nil {
		return nil, fmt.Errorf("discovery.NewResponder: advertised address %q: %w", reply, err)
	}

	laddr, err := net.ResolveUDPAddr("udp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("discovery.NewResponder: resolve %q: %w", cfg.ListenAddr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("discovery.NewResponder: bind %q: %w", cfg.ListenAddr, err)
	}

	return &Responder{
		conn:    conn,
		request: append([]byte(nil), cfg.Request...),
		reply:   []byte(reply),
		logger:  logger,
	}, nil
}

// Addr returns the bound UDP address.
func (r *Responder) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Reply returns the payload sent to clients.
func (r *Responder) Reply() string {
	return string(r.reply)
}

// Serve loops until ctx is cancelled or the socket fails.
// It returns nil on cancellation.
func (r *Responder) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		r.conn.Close()
	})
	defer func() {
		stop()
		r.conn.Close()
	}()

	r.logger.Info("Discovery service listening", slog.String("addr", r.conn.LocalAddr().String()), slog.String("reply", string(r.reply)))

	buf := make([]byte, maxDatagram)
	for {
		n, from, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("discovery: receive: %w", err)
		}
		if !bytes.Equal(buf[:n], r.request) {
			continue
		}
		r.logger.Info("Replying to discovery message", slog.String("from", from.String()))
		if _, err := r.conn.WriteToUDP(r.reply, from); err != nil {
			r.logger.Warn("Discovery reply failed", slog.String("to", from.String()), slog.Any("error", err))
		}
	}
}
