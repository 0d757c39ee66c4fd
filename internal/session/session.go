package session

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"socks5guard/internal/auth"
	"socks5guard/internal/config"
	"socks5guard/internal/domain"
	"socks5guard/internal/logsink"
	"socks5guard/internal/policy"
	"socks5guard/internal/socks"
)

// DialTimeout bounds how long Dialing waits for an outbound TCP
// connect before treating it as a DialError.
const DialTimeout = 10 * time.Second

// Dialer opens the outbound connection to a CONNECT target. Abstracted
// so tests can substitute a stub target without a real network.
type Dialer interface {
	DialTimeout(network, address string, timeout time.Duration) (net.Conn, error)
}

// netDialer is the production Dialer, backed by net.Dialer.
type netDialer struct{}

func (netDialer) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, address, timeout)
}

// NetDialer is the default, real-network Dialer.
var NetDialer Dialer = netDialer{}

// Session drives one client connection through the finite state
// machine. A Session owns its client socket and, lazily, its server
// socket; both are closed together on entry into Closing.
type Session struct {
	conn   net.Conn
	peerIP string

	cfg      *config.Snapshot
	sink     logsink.Sink
	resolver domain.DomainResolver
	dialer   Dialer

	state     domain.SessionState
	stateMu   sync.Mutex
	closeOnce sync.Once
	onClose   func()

	server net.Conn
}

// New constructs a Session for an accepted client connection. resolver
// may be nil when the policy/config never requires domain resolution
// in a given deployment; sessions that encounter a domain target
// without a resolver fail the dial with ErrDial.
func New(conn net.Conn, peerIP string, cfg *config.Snapshot, sink logsink.Sink, resolver domain.DomainResolver, dialer Dialer, onClose func()) *Session {
	if dialer == nil {
		dialer = NetDialer
	}
	return &Session{
		conn:     conn,
		peerIP:   peerIP,
		cfg:      cfg,
		sink:     sink,
		resolver: resolver,
		dialer:   dialer,
		state:    domain.ReadingGreeting,
		onClose:  onClose,
	}
}

func (s *Session) setState(st domain.SessionState) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

func (s *Session) log(level slog.Level, format string, args ...any) {
	if s.sink == nil {
		return
	}
	s.sink.Enqueue(level, s.peerIP, fmt.Sprintf(format, args...))
}

// Run drives the session to completion. It never returns an error to
// the caller; every failure is logged and terminates in Closing.
// Errors never cross the session boundary, each session terminates
// itself.
func (s *Session) Run() {
	defer s.close()

	methods, err := s.readGreeting()
	if err != nil {
		s.log(slog.LevelError, "error while reading greeting: %v", err)
		return
	}

	s.setState(domain.SelectingMethod)
	s.setState(domain.Authenticating)
	outcome, err := s.authenticate(methods)
	if err != nil {
		if err == auth.ErrNoAcceptableMethod {
			s.log(slog.LevelWarn, "no acceptable authentication method offered")
		} else {
			s.log(slog.LevelError, "error while authenticating: %v", err)
		}
		return
	}
	if !outcome.Accepted {
		s.log(slog.LevelWarn, "authentication failed with method %d: %s", outcome.Method, outcome.Diagnostic)
		return
	}
	s.log(slog.LevelInfo, "authenticated successfully with method %d", outcome.Method)

	s.setState(domain.ReadingRequest)
	target, err := s.readRequest()
	if err != nil {
		s.log(slog.LevelError, "error while reading request: %v", err)
		return
	}

	s.setState(domain.Dialing)
	if err := s.dial(target); err != nil {
		s.log(slog.LevelError, "dial failed for %s:%d: %v", target.Host, target.Port, err)
		return
	}

	s.setState(domain.Relaying)
	s.relay()
}

// readGreeting decodes the client's method-selection greeting,
// returning the raw offered method bytes.
func (s *Session) readGreeting() ([]byte, error) {
	header := make([]byte, socks.GreetingHeaderLen)
	if _, err := io.ReadFull(s.conn, header); err != nil {
		return nil, err
	}
	nMethods, err := socks.ParseGreetingHeader(header)
	if err != nil {
		// VER != 5: no reply is owed here, nothing has been
		// negotiated yet.
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	methods := make([]byte, nMethods)
	if _, err := io.ReadFull(s.conn, methods); err != nil {
		return nil, err
	}
	return methods, nil
}

// authenticate delegates to the auth dispatcher for the session's
// configured policy.
func (s *Session) authenticate(methods []byte) (domain.AuthOutcome, error) {
	dispatcher := auth.NewDispatcher(s.cfg.Auth)
	return dispatcher.Dispatch(s.conn, methods)
}

// readRequest decodes the CONNECT request frame and returns the
// parsed target, sending the appropriate reply and closing on every
// malformed-frame path.
func (s *Session) readRequest() (domain.Target, error) {
	header := make([]byte, socks.RequestHeaderLen)
	if _, err := io.ReadFull(s.conn, header); err != nil {
		s.sendReply(domain.ReplyAddressNotSupported)
		return domain.Target{}, fmt.Errorf("%w: short request header: %v", ErrProtocol, err)
	}

	if header[0] != domain.SocksVersion {
		s.sendReply(domain.ReplyGeneralFailure)
		return domain.Target{}, fmt.Errorf("%w: unsupported version %d", ErrProtocol, header[0])
	}
	if header[1] != domain.CmdConnect {
		s.sendReply(domain.ReplyCommandNotSupported)
		return domain.Target{}, fmt.Errorf("%w: unsupported command %d", ErrProtocol, header[1])
	}

	atyp := domain.AddressType(header[3])
	switch atyp {
	case domain.AddrIPv4, domain.AddrIPv6:
		n, _ := socks.FixedAddressLen(atyp)
		buf := make([]byte, n)
		if _, err := io.ReadFull(s.conn, buf); err != nil {
			s.sendReply(domain.ReplyAddressNotSupported)
			return domain.Target{}, fmt.Errorf("%w: short address: %v", ErrProtocol, err)
		}
		target, err := socks.DecodeFixedAddress(atyp, buf)
		if err != nil {
			s.sendReply(domain.ReplyAddressNotSupported)
			return domain.Target{}, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		return target, nil

	case domain.AddrDomain:
		lenBuf := make([]byte, 1)
		if _, err := io.ReadFull(s.conn, lenBuf); err != nil {
			s.sendReply(domain.ReplyAddressNotSupported)
			return domain.Target{}, fmt.Errorf("%w: short domain length: %v", ErrProtocol, err)
		}
		length, _ := socks.DecodeDomainLength(lenBuf)
		buf := make([]byte, length+2)
		if _, err := io.ReadFull(s.conn, buf); err != nil {
			s.sendReply(domain.ReplyAddressNotSupported)
			return domain.Target{}, fmt.Errorf("%w: short domain body: %v", ErrProtocol, err)
		}
		target, err := socks.DecodeDomainAddress(length, buf)
		if err != nil {
			s.sendReply(domain.ReplyAddressNotSupported)
			return domain.Target{}, fmt.Errorf("%w: %v", ErrProtocol, err)
		}
		return target, nil

	default:
		s.sendReply(domain.ReplyAddressNotSupported)
		return domain.Target{}, fmt.Errorf("%w: unsupported address type %d", ErrProtocol, atyp)
	}
}

// dial applies the policy gate, resolves domain targets, and opens the
// outbound connection.
func (s *Session) dial(target domain.Target) error {
	decision := policy.NewGate(s.cfg.Policy).Check(target.Host, target.Port)
	if decision != domain.Allowed {
		s.log(slog.LevelWarn, "target %s:%d %s by policy", target.Host, target.Port, decision)
		s.sendReply(policy.ReplyCode(decision))
		return fmt.Errorf("%w: %s", ErrPolicy, decision)
	}

	if target.AddrType == domain.AddrDomain {
		if s.resolver == nil {
			s.sendReply(domain.ReplyConnectionRefused)
			return fmt.Errorf("%w: no resolver configured for domain target %q", ErrDial, target.Host)
		}
		ip, err := s.resolver.Resolve(target.Host)
		if err != nil {
			s.sendReply(domain.ReplyConnectionRefused)
			return fmt.Errorf("%w: resolve %q: %v", ErrDial, target.Host, err)
		}
		target.IP = ip
		s.log(slog.LevelInfo, "resolved %s to %s", target.Host, ip)
	}

	addr := net.JoinHostPort(target.DialHost(), fmt.Sprintf("%d", target.Port))
	conn, err := s.dialer.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		s.sendReply(domain.ReplyConnectionRefused)
		return fmt.Errorf("%w: %v", ErrDial, err)
	}

	s.server = conn
	s.log(slog.LevelInfo, "connected to target %s", addr)
	s.sendReply(domain.ReplyOK)
	return nil
}

// sendReply writes the fixed 10-byte SOCKS5 reply frame, logging the
// reply code.
func (s *Session) sendReply(code domain.ReplyCode) {
	s.log(slog.LevelInfo, "sending SOCKS reply with status %d", code)
	if _, err := s.conn.Write(socks.EncodeReply(code)); err != nil {
		s.log(slog.LevelError, "error writing SOCKS reply: %v", err)
	}
}

// relay runs the two independent half-duplex copy loops: read up to
// BufferSize bytes, write the exact slice, repeat. Relaying is the
// only state in which both directions may have I/O outstanding
// simultaneously. The first direction to fail triggers close()
// immediately, so its half-closed sockets unblock whichever Read or
// Write the other direction is stuck in, instead of waiting for it to
// fail independently.
func (s *Session) relay() {
	done := make(chan struct{}, 2)

	go func() {
		copyDirection(s.conn, s.server)
		done <- struct{}{}
	}()
	go func() {
		copyDirection(s.server, s.conn)
		done <- struct{}{}
	}()

	<-done
	s.close()
	<-done
}

// copyDirection performs one direction's read-then-write-exact loop.
// It never buffers beyond the single in-flight read. Any read or
// write failure silently ends this direction; I/O errors after
// Relaying begins are silent closures.
func copyDirection(dst, src net.Conn) {
	buf := make([]byte, domain.BufferSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// close transitions the session to Closing and releases both sockets.
// Idempotent: calling it from both relay directions concurrently, or
// from any earlier failure path, has the same observable effect once.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.setState(domain.Closing)
		s.conn.Close()
		if s.server != nil {
			s.server.Close()
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
}

// Close lets the acceptor cancel a session from the outside.
func (s *Session) Close() {
	s.close()
}

// State returns the session's current state, safe for concurrent
// access from both relay goroutines and an external Close call.
func (s *Session) State() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}
