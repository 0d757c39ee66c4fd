package auth

import (
	"io"

	"socks5guard/internal/domain"
	"socks5guard/internal/socks"
)

// Dispatcher holds the server's authentication policy and builds the
// concrete Strategy for whichever method the client and the policy
// agree on. Selection is a small table lookup over the three concrete
// strategies.
type Dispatcher struct {
	cfg domain.AuthConfig
}

func NewDispatcher(cfg domain.AuthConfig) *Dispatcher {
	return &Dispatcher{cfg: cfg}
}

// strategyFor returns the Strategy instance for method, or nil if the
// dispatcher's configured preference does not accept it.
func (d *Dispatcher) strategyFor(method byte) Strategy {
	pref := d.cfg.Preference
	switch {
	case method == byte(domain.MethodNoAuth) && (pref == domain.PreferNone || pref == domain.PreferAny):
		return NoAuth{}
	case method == byte(domain.MethodGSSAPI) && (pref == domain.PreferGSSAPI || pref == domain.PreferAny):
		return GSSAPIRefuse{}
	case method == byte(domain.MethodUserPass) && (pref == domain.PreferUserPass || pref == domain.PreferAny):
		return UserPass{Username: d.cfg.Username, Password: d.cfg.Password}
	default:
		return nil
	}
}

// Dispatch reads nothing itself: methods is the already-decoded list
// of method bytes from the client's greeting. It walks methods in
// order and delegates to the first one that satisfies server policy.
// When no method matches it writes the no-acceptable-methods reply
// itself and returns ErrNoAcceptableMethod, never leaking the socket.
func (d *Dispatcher) Dispatch(rw io.ReadWriter, methods []byte) (domain.AuthOutcome, error) {
	for _, m := range methods {
		if strat := d.strategyFor(m); strat != nil {
			return strat.Authenticate(rw)
		}
	}

	if _, err := rw.Write(socks.EncodeMethodReply(domain.MethodNoAcceptable)); err != nil {
		return domain.AuthOutcome{}, err
	}
	return domain.AuthOutcome{
		Accepted:   false,
		Method:     domain.MethodNoAcceptable,
		Diagnostic: "Unsupported authentication method.",
	}, ErrNoAcceptableMethod
}
