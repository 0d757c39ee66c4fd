// Package auth implements the three SOCKS5 authentication strategies
// (NONE, GSSAPI-declined, USER/PASS) behind one interface, plus a
// dispatcher that intersects a client's offered methods with server
// policy and delegates to the chosen strategy.
//
// Each concrete strategy writes its method-select reply, then
// (UserPass only) runs its own sub-negotiation, and always hands the
// connection back to the caller, on success and on failure alike, so
// the session engine can emit a SOCKS reply or close on every path.
package auth

import (
	"crypto/subtle"
	"errors"
	"io"

	"socks5guard/internal/domain"
	"socks5guard/internal/socks"
)

// ErrNoAcceptableMethod is returned by the dispatcher when none of the
// client's offered methods satisfy server policy. The caller has
// already had [5, 0xFF] written for it.
var ErrNoAcceptableMethod = errors.New("auth: unsupported authentication method")

// Strategy authenticates a connection and returns the socket's
// disposition on every path.
type Strategy interface {
	Method() domain.MethodId
	Authenticate(rw io.ReadWriter) (domain.AuthOutcome, error)
}

// NoAuth is the 0x00 strategy: writes the method reply and accepts
// unconditionally.
type NoAuth struct{}

func (NoAuth) Method() domain.MethodId { return domain.MethodNoAuth }

func (NoAuth) Authenticate(rw io.ReadWriter) (domain.AuthOutcome, error) {
	if _, err := rw.Write(socks.EncodeMethodReply(domain.MethodNoAuth)); err != nil {
		return domain.AuthOutcome{Accepted: false, Method: domain.MethodNoAuth}, err
	}
	return domain.AuthOutcome{Accepted: true, Method: domain.MethodNoAuth}, nil
}

// GSSAPIRefuse is the 0x01 strategy: it advertises the method, then
// always fails. Full GSSAPI is unimplemented.
//
// TODO: implement the actual GSSAPI token exchange.
type GSSAPIRefuse struct{}

func (GSSAPIRefuse) Method() domain.MethodId { return domain.MethodGSSAPI }

func (GSSAPIRefuse) Authenticate(rw io.ReadWriter) (domain.AuthOutcome, error) {
	if _, err := rw.Write(socks.EncodeMethodReply(domain.MethodGSSAPI)); err != nil {
		return domain.AuthOutcome{Accepted: false, Method: domain.MethodGSSAPI}, err
	}
	return domain.AuthOutcome{Accepted: false, Method: domain.MethodGSSAPI}, nil
}

// UserPass is the 0x02 strategy: RFC 1929 username/password
// sub-negotiation against a single configured credential pair,
// compared in constant time.
type UserPass struct {
	Username string
	Password string
}

func (UserPass) Method() domain.MethodId { return domain.MethodUserPass }

func (u UserPass) Authenticate(rw io.ReadWriter) (domain.AuthOutcome, error) {
	if _, err := rw.Write(socks.EncodeMethodReply(domain.MethodUserPass)); err != nil {
		return domain.AuthOutcome{Accepted: false, Method: domain.MethodUserPass}, err
	}

	header := make([]byte, socks.UserPassHeaderLen)
	if _, err := io.ReadFull(rw, header); err != nil {
		return domain.AuthOutcome{Accepted: false, Method: domain.MethodUserPass}, err
	}
	uLen, err := socks.ParseUserPassHeader(header)
	if err != nil {
		return domain.AuthOutcome{
			Accepted:   false,
			Method:     domain.MethodUserPass,
			Diagnostic: "Invalid authentication request header.",
		}, nil
	}

	username := make([]byte, uLen)
	if _, err := io.ReadFull(rw, username); err != nil {
		return domain.AuthOutcome{Accepted: false, Method: domain.MethodUserPass}, err
	}

	pLenBuf := make([]byte, 1)
	if _, err := io.ReadFull(rw, pLenBuf); err != nil {
		return domain.AuthOutcome{Accepted: false, Method: domain.MethodUserPass}, err
	}
	pLen, _ := socks.ParsePasswordLength(pLenBuf)

	password := make([]byte, pLen)
	if _, err := io.ReadFull(rw, password); err != nil {
		return domain.AuthOutcome{Accepted: false, Method: domain.MethodUserPass}, err
	}

	match := constantTimeEquals(string(username), u.Username) &&
		constantTimeEquals(string(password), u.Password)

	if _, err := rw.Write(socks.EncodeUserPassReply(match)); err != nil {
		return domain.AuthOutcome{Accepted: false, Method: domain.MethodUserPass}, err
	}

	return domain.AuthOutcome{Accepted: match, Method: domain.MethodUserPass}, nil
}

// constantTimeEquals compares two strings without leaking timing
// information about where they first differ.
func constantTimeEquals(got, want string) bool {
	if len(got) != len(want) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
