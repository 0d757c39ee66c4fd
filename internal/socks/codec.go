// Package socks implements the pure, allocation-light encode/decode
// helpers for the SOCKS5 wire frames: the greeting, the method-select
// reply, the CONNECT request, the reply, and the RFC 1929
// username/password sub-negotiation. Every function here operates on
// already-buffered byte slices, no I/O, no blocking reads, so the
// session engine controls exactly how many bytes to accumulate off
// the wire before calling in.
package socks

import (
	"encoding/binary"
	"errors"
	"net"

	"socks5guard/internal/domain"
)

var (
	ErrBadVersion          = errors.New("socks: unsupported protocol version")
	ErrShortBuffer         = errors.New("socks: buffer shorter than declared frame length")
	ErrUnsupportedCommand  = errors.New("socks: unsupported command")
	ErrUnsupportedAddrType = errors.New("socks: unsupported address type")
	ErrBadSubVersion       = errors.New("socks: invalid authentication request header")
)

// GreetingHeaderLen is the size of the fixed part of the greeting:
// VER, NMETHODS.
const GreetingHeaderLen = 2

// ParseGreetingHeader reads VER and NMETHODS from the first two bytes
// of a greeting frame and returns how many method bytes follow.
func ParseGreetingHeader(b []byte) (nMethods int, err error) {
	if len(b) < GreetingHeaderLen {
		return 0, ErrShortBuffer
	}
	if b[0] != domain.SocksVersion {
		return 0, ErrBadVersion
	}
	return int(b[1]), nil
}

// EncodeMethodReply builds the two-byte method-select reply.
func EncodeMethodReply(method domain.MethodId) []byte {
	return []byte{domain.SocksVersion, byte(method)}
}

// RequestHeaderLen is the size of the fixed part of a request frame:
// VER, CMD, RSV, ATYP.
const RequestHeaderLen = 4

// ParseRequestHeader validates VER and CMD and returns the address
// type that follows.
func ParseRequestHeader(b []byte) (atyp domain.AddressType, err error) {
	if len(b) < RequestHeaderLen {
		return 0, ErrShortBuffer
	}
	if b[0] != domain.SocksVersion {
		return 0, ErrBadVersion
	}
	if b[1] != domain.CmdConnect {
		return 0, ErrUnsupportedCommand
	}
	switch domain.AddressType(b[3]) {
	case domain.AddrIPv4, domain.AddrDomain, domain.AddrIPv6:
		return domain.AddressType(b[3]), nil
	default:
		return 0, ErrUnsupportedAddrType
	}
}

// FixedAddressLen returns the number of address+port bytes that follow
// the request header for IPv4/IPv6 addressing, or ok=false when the
// address is domain-named and carries a length prefix instead.
func FixedAddressLen(atyp domain.AddressType) (n int, ok bool) {
	switch atyp {
	case domain.AddrIPv4:
		return net.IPv4len + 2, true
	case domain.AddrIPv6:
		return net.IPv6len + 2, true
	default:
		return 0, false
	}
}

// DecodeFixedAddress decodes an IPv4 or IPv6 DST.ADDR + DST.PORT block.
func DecodeFixedAddress(atyp domain.AddressType, b []byte) (domain.Target, error) {
	n, ok := FixedAddressLen(atyp)
	if !ok {
		return domain.Target{}, ErrUnsupportedAddrType
	}
	if len(b) < n {
		return domain.Target{}, ErrShortBuffer
	}
	ipLen := n - 2
	ip := net.IP(b[:ipLen]).String()
	port := binary.BigEndian.Uint16(b[ipLen : ipLen+2])
	return domain.Target{AddrType: atyp, Host: ip, IP: ip, Port: port}, nil
}

// DecodeDomainLength reads the one-byte domain name length prefix.
func DecodeDomainLength(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, ErrShortBuffer
	}
	return int(b[0]), nil
}

// DecodeDomainAddress decodes a domain name of the given length
// immediately followed by DST.PORT from b (len(b) must be length+2).
func DecodeDomainAddress(length int, b []byte) (domain.Target, error) {
	if len(b) < length+2 {
		return domain.Target{}, ErrShortBuffer
	}
	host := string(b[:length])
	port := binary.BigEndian.Uint16(b[length : length+2])
	return domain.Target{AddrType: domain.AddrDomain, Host: host, Port: port}, nil
}

// EncodeReply builds the 10-byte SOCKS5 reply frame. The core always
// replies with ATYP=1 and bound address 0.0.0.0:0, sufficient and
// compatible with common clients.
func EncodeReply(code domain.ReplyCode) []byte {
	return []byte{
		domain.SocksVersion,
		byte(code),
		0x00,
		byte(domain.AddrIPv4),
		0, 0, 0, 0,
		0, 0,
	}
}

// UserPassHeaderLen is the size of the fixed part of a username/password
// sub-negotiation request: VER, ULEN.
const UserPassHeaderLen = 2

// ParseUserPassHeader validates the sub-negotiation version byte and
// returns the username length that follows.
func ParseUserPassHeader(b []byte) (uLen int, err error) {
	if len(b) < UserPassHeaderLen {
		return 0, ErrShortBuffer
	}
	if b[0] != domain.UserPassSubVersion {
		return 0, ErrBadSubVersion
	}
	return int(b[1]), nil
}

// ParsePasswordLength reads the one-byte PLEN following the username.
func ParsePasswordLength(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, ErrShortBuffer
	}
	return int(b[0]), nil
}

// EncodeUserPassReply builds the two-byte RFC 1929 sub-negotiation reply.
func EncodeUserPassReply(ok bool) []byte {
	status := byte(1)
	if ok {
		status = 0
	}
	return []byte{domain.UserPassSubVersion, status}
}
