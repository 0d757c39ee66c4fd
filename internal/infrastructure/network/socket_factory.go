// Package network builds the raw, non-blocking sockets the epoll event
// loop registers: the listening socket and the shared DNS UDP socket.
package network

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// ListenTCP binds and listens on ip:port with address reuse enabled.
func ListenTCP(ip string, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, err
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return 0, err
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return 0, err
	}

	addr := &unix.SockaddrInet4{Port: port}
	if ip != "" && ip != "0.0.0.0" {
		parsed := net.ParseIP(ip)
		if parsed == nil {
			unix.Close(fd)
			return 0, fmt.Errorf("network: invalid listen address %q", ip)
		}
		v4 := parsed.To4()
		if v4 == nil {
			unix.Close(fd)
			return 0, fmt.Errorf("network: listen address %q is not IPv4", ip)
		}
		copy(addr.Addr[:], v4)
	}

	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return 0, err
	}

	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return 0, err
	}

	return fd, nil
}

// BindUDP creates the non-blocking UDP socket used for every outgoing
// DNS query (shared across sessions, demultiplexed by DNS message ID).
func BindUDP() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return 0, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return 0, err
	}
	return fd, nil
}

// PeerIP returns the textual remote address of an accepted connection,
// or "unknown" when the sockaddr is not an IPv4 endpoint (e.g. a
// Unix-domain test harness).
func PeerIP(sa unix.Sockaddr) string {
	if v4, ok := sa.(*unix.SockaddrInet4); ok {
		return net.IP(v4.Addr[:]).String()
	}
	return "unknown"
}
