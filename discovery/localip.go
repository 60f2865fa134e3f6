package discovery

import (
	"fmt"
	"net"
	"net/netip"
)

// probeTarget is never contacted, dialing UDP only selects the outbound interface.
const probeTarget = "192.0.2.1:9"

// LocalIP returns the address of the interface used for outbound traffic,
// falling back to the first non-loopback IPv4 interface address.
func LocalIP() (netip.Addr, error) {
	if conn, err := net.Dial("udp4", probeTarget); err == nil {
		defer conn.Close()
		if ua, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			if addr, ok := netip.AddrFromSlice(ua.IP); ok && !addr.Unmap().IsUnspecified() {
				return addr.Unmap(), nil
			}
		}
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %v", ErrNoLANAddress, err)
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if addr.Is4() && !addr.IsLoopback() && !addr.IsLinkLocalUnicast() {
			return addr, nil
		}
	}
	return netip.Addr{}, ErrNoLANAddress
}
