// Package policy implements the allow/deny gate: pure set-membership
// checks over a (host, port) pair.
package policy

import "socks5guard/internal/domain"

// Gate holds an immutable snapshot of the host/port allow and deny
// lists and decides whether a target may be dialed.
type Gate struct {
	cfg domain.PolicyConfig
}

func NewGate(cfg domain.PolicyConfig) *Gate {
	return &Gate{cfg: cfg}
}

// checkHost decides, for a host alone, whether it is permitted. host
// is the literal string the client supplied, the dotted IP form or
// the domain name, never a resolved address. The block list is
// checked before the wildcard/allow list, so a blocked entry always
// wins even under an "all" allow wildcard.
func (g *Gate) checkHost(host string) domain.Decision {
	if _, blocked := g.cfg.BlockedHosts[host]; blocked {
		return Denied
	}
	if g.cfg.AllHosts {
		return Allowed
	}
	if _, allowed := g.cfg.AllowedHosts[host]; allowed {
		return Allowed
	}
	return NotListed
}

func (g *Gate) checkPort(port uint16) domain.Decision {
	if _, blocked := g.cfg.BlockedPorts[port]; blocked {
		return Denied
	}
	if g.cfg.AllPorts {
		return Allowed
	}
	if _, allowed := g.cfg.AllowedPorts[port]; allowed {
		return Allowed
	}
	return NotListed
}

// Decision re-exports domain.Decision so callers only need to import
// this package for the common case.
type Decision = domain.Decision

const (
	Allowed   = domain.Allowed
	Denied    = domain.Denied
	NotListed = domain.NotListed
)

// Check combines the host and port decisions: the stricter of the two
// wins. A Denied on either side denies the target outright, otherwise
// an Allowed on both sides is required to proceed to dial, and
// anything else falls through to NotListed.
func (g *Gate) Check(host string, port uint16) Decision {
	h := g.checkHost(host)
	p := g.checkPort(port)

	if h == Denied || p == Denied {
		return Denied
	}
	if h == Allowed && p == Allowed {
		return Allowed
	}
	return NotListed
}

// ReplyCode maps a Decision to the SOCKS5 reply code the session
// engine sends before closing. Both Denied and NotListed map to 2
// (not allowed by ruleset).
func ReplyCode(d Decision) domain.ReplyCode {
	switch d {
	case Denied, NotListed:
		return domain.ReplyNotAllowedByRuleset
	default:
		return domain.ReplyOK
	}
}
