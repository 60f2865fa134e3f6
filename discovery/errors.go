package discovery

import "errors"

var (
	// ErrTimeout - no reply datagram arrived within the probe timeout.
	ErrTimeout = errors.New("discovery: timed out waiting for server reply")

	// ErrTransport - the probe socket failed to send or receive.
	ErrTransport = errors.New("discovery: transport error")

	// ErrMalformedReply - the reply payload is not an ip:port address.
	ErrMalformedReply = errors.New("discovery: malformed reply")

	// ErrNoLANAddress - the responder could not determine the address clients should connect to.
	ErrNoLANAddress = errors.New("discovery: no LAN-facing address")
)
