// Package resolver builds and parses the DNS A-record queries the proxy
// issues for domain-addressed CONNECT targets. Pure encode/decode
// helpers; the caller owns the socket and the ID-to-session
// demultiplexing table.
package resolver

import (
	"errors"

	"github.com/miekg/dns"
)

// ErrNoAnswer is returned when a response carries no A record.
var ErrNoAnswer = errors.New("resolver: no A record in response")

// BuildQuery packs a recursive A-record query for host, tagged with id
// so the caller can correlate the eventual UDP response.
func BuildQuery(id uint16, host string) ([]byte, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true
	m.Id = id
	return m.Pack()
}

// ParseResponse unpacks a DNS response and returns its transaction ID
// and the first resolved IPv4 address.
func ParseResponse(buf []byte) (id uint16, ip string, err error) {
	msg := new(dns.Msg)
	if err := msg.Unpack(buf); err != nil {
		return 0, "", err
	}

	for _, ans := range msg.Answer {
		if a, ok := ans.(*dns.A); ok {
			return msg.Id, a.A.String(), nil
		}
	}
	return msg.Id, "", ErrNoAnswer
}
