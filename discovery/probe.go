package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"
)

// ProbeConfig describes a single discovery attempt.
type ProbeConfig struct {
	// BroadcastAddr - destination of the request, normally "255.255.255.255:<discovery port>".
	BroadcastAddr string
	// Request - payload the responder recognizes.
	Request []byte
	// Timeout - how long to wait for a reply.
	Timeout time.Duration
}

// Probe sends one discovery request and waits for one reply.
// The error wraps ErrTimeout, ErrTransport or ErrMalformedReply. Retrying is up to the caller.
func Probe(ctx context.Context, cfg ProbeConfig) (netip.AddrPort, error) {
	dst, err := net.ResolveUDPAddr("udp4", cfg.BroadcastAddr)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: resolve %q: %v", ErrTransport, cfg.BroadcastAddr, err)
	}

	// Datagram sockets are created with SO_BROADCAST already set by the net package.
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: bind: %v", ErrTransport, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.WriteToUDP(cfg.Request, dst); err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: send: %v", ErrTransport, err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(cfg.Timeout)); err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	buf := make([]byte, maxDatagram)
	// The datagram source is the UDP responder, only the payload names the relay.
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		if ctx.Err() != nil {
			return netip.AddrPort{}, ctx.Err()
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return netip.AddrPort{}, fmt.Errorf("%w after %v", ErrTimeout, cfg.Timeout)
		}
		return netip.AddrPort{}, fmt.Errorf("%w: receive: %v", ErrTransport, err)
	}

	reply := strings.TrimSpace(string(buf[:n]))
	addr, err := netip.ParseAddrPort(reply)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: %q: %v", ErrMalformedReply, reply, err)
	}
	return addr, nil
}
