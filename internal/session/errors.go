// Package session implements the per-connection SOCKS5 state machine:
// greeting -> auth -> request -> dial -> relay -> close. Wired to the
// dispatcher, policy gate, and logging sink packages.
package session

import "errors"

// The session's error taxonomy. Protocol/policy/dial errors each map
// to a specific SOCKS reply code before the session closes; auth
// errors close after the method or sub-negotiation reply with no
// request reply; transport errors during relay close silently. None of these ever
// cross a session's own boundary: Run logs and closes internally.
var (
	ErrProtocol  = errors.New("session: protocol error")
	ErrAuth      = errors.New("session: authentication error")
	ErrPolicy    = errors.New("session: denied by policy")
	ErrDial      = errors.New("session: could not reach target")
	ErrTransport = errors.New("session: transport error during relay")
)
