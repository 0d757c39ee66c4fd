package policy

import (
	"testing"

	"socks5guard/internal/domain"
)

func TestCheckAllowsWildcardHostAndPort(t *testing.T) {
	g := NewGate(domain.PolicyConfig{AllHosts: true, AllPorts: true})
	if got := g.Check("example.com", 443); got != Allowed {
		t.Fatalf("Check = %v, want Allowed", got)
	}
}

func TestCheckBlockListWinsOverWildcard(t *testing.T) {
	// Allow "all" hosts, but example.com is explicitly blocked. The
	// block list must still deny it.
	g := NewGate(domain.PolicyConfig{
		AllHosts:     true,
		BlockedHosts: map[string]struct{}{"example.com": {}},
		AllPorts:     true,
	})
	if got := g.Check("example.com", 443); got != Denied {
		t.Fatalf("Check = %v, want Denied", got)
	}
	if got := ReplyCode(Denied); got != domain.ReplyNotAllowedByRuleset {
		t.Fatalf("ReplyCode(Denied) = %v, want ReplyNotAllowedByRuleset", got)
	}
}

func TestCheckExplicitAllowList(t *testing.T) {
	g := NewGate(domain.PolicyConfig{
		AllowedHosts: map[string]struct{}{"good.example": {}},
		AllowedPorts: map[uint16]struct{}{443: {}},
	})
	if got := g.Check("good.example", 443); got != Allowed {
		t.Fatalf("Check(good.example, 443) = %v, want Allowed", got)
	}
	if got := g.Check("other.example", 443); got != NotListed {
		t.Fatalf("Check(other.example, 443) = %v, want NotListed", got)
	}
	if got := g.Check("good.example", 8080); got != NotListed {
		t.Fatalf("Check(good.example, 8080) = %v, want NotListed", got)
	}
}

func TestCheckBlockedPort(t *testing.T) {
	g := NewGate(domain.PolicyConfig{
		AllHosts:     true,
		AllPorts:     true,
		BlockedPorts: map[uint16]struct{}{25: {}},
	})
	if got := g.Check("mail.example", 25); got != Denied {
		t.Fatalf("Check = %v, want Denied", got)
	}
}

func TestReplyCodeForNotListedAndAllowed(t *testing.T) {
	if got := ReplyCode(NotListed); got != domain.ReplyNotAllowedByRuleset {
		t.Fatalf("ReplyCode(NotListed) = %v, want ReplyNotAllowedByRuleset", got)
	}
	if got := ReplyCode(Allowed); got != domain.ReplyOK {
		t.Fatalf("ReplyCode(Allowed) = %v, want ReplyOK", got)
	}
}
