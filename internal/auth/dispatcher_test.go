package auth

import (
	"bytes"
	"testing"

	"socks5guard/internal/domain"
)

func TestDispatchPicksFirstAcceptableMethod(t *testing.T) {
	var lb loopback
	d := NewDispatcher(domain.AuthConfig{Preference: domain.PreferAny})

	outcome, err := d.Dispatch(&lb, []byte{byte(domain.MethodGSSAPI), byte(domain.MethodNoAuth)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// GSSAPI is offered first and PreferAny accepts it, so it wins even
	// though it always fails its own handshake.
	if outcome.Method != domain.MethodGSSAPI {
		t.Fatalf("outcome.Method = %v, want MethodGSSAPI", outcome.Method)
	}
}

func TestDispatchRespectsConfiguredPreference(t *testing.T) {
	var lb loopback
	d := NewDispatcher(domain.AuthConfig{Preference: domain.PreferUserPass, Username: "alice", Password: "s3cret"})

	outcome, err := d.Dispatch(&lb, []byte{byte(domain.MethodNoAuth)})
	if err == nil {
		t.Fatal("expected ErrNoAcceptableMethod, got nil")
	}
	if err != ErrNoAcceptableMethod {
		t.Fatalf("err = %v, want ErrNoAcceptableMethod", err)
	}
	if outcome.Method != domain.MethodNoAcceptable {
		t.Fatalf("outcome.Method = %v, want MethodNoAcceptable", outcome.Method)
	}
	if got := lb.Bytes(); !bytes.Equal(got, []byte{0x05, 0xFF}) {
		t.Fatalf("wrote %v, want [5 255]", got)
	}
}
