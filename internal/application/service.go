// Package application implements the acceptor/runtime: binds the
// listening socket, loops accepting, and spawns a session per
// connection. HandleEvent dispatches on (fd, event) for the two
// concerns the event loop owns: accepting new clients and
// demultiplexing DNS responses over a shared UDP socket. Every
// accepted connection's protocol state machine runs in its own
// goroutine (internal/session) instead of through the event loop.
package application

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"socks5guard/internal/config"
	"socks5guard/internal/domain"
	"socks5guard/internal/infrastructure/network"
	"socks5guard/internal/infrastructure/resolver"
	"socks5guard/internal/logsink"
	"socks5guard/internal/session"
)

// DefaultDNSServer is the upstream resolver used for domain-addressed
// CONNECT targets.
var DefaultDNSServer = [4]byte{8, 8, 8, 8}

const dnsTimeout = 5 * time.Second

type dnsResult struct {
	ip  string
	err error
}

// ProxyService is the acceptor: it owns the listening socket, the
// shared DNS UDP socket, and the live-session collection, the only
// state shared across sessions.
type ProxyService struct {
	log  *slog.Logger
	loop domain.EventLoop
	cfg  *config.Snapshot
	sink logsink.Sink

	listenerFD int
	dnsFD      int

	sessionsMu sync.Mutex
	sessions   map[*session.Session]struct{}

	pendingMu sync.Mutex
	pending   map[uint16]chan dnsResult
	nextDNSID atomic.Uint32

	stopOnce sync.Once
	stopped  atomic.Bool
}

func NewProxyService(loop domain.EventLoop, log *slog.Logger, cfg *config.Snapshot, sink logsink.Sink) (*ProxyService, error) {
	lfd, err := network.ListenTCP(cfg.ListenIP, cfg.ListenPort)
	if err != nil {
		return nil, fmt.Errorf("application: listen: %w", err)
	}

	dfd, err := network.BindUDP()
	if err != nil {
		unix.Close(lfd)
		return nil, fmt.Errorf("application: bind dns socket: %w", err)
	}

	return &ProxyService{
		log:        log,
		loop:       loop,
		cfg:        cfg,
		sink:       sink,
		listenerFD: lfd,
		dnsFD:      dfd,
		sessions:   make(map[*session.Session]struct{}),
		pending:    make(map[uint16]chan dnsResult),
	}, nil
}

// Start registers the listening and DNS sockets on the event loop and
// runs it. It blocks until the loop exits, normally because Stop()
// closed the listener and the event loop's own fd.
func (s *ProxyService) Start() error {
	if err := s.loop.Register(s.listenerFD, domain.EventRead); err != nil {
		return err
	}
	if err := s.loop.Register(s.dnsFD, domain.EventRead); err != nil {
		return err
	}

	s.log.Info("proxy service listening", "ip", s.cfg.ListenIP, "port", s.cfg.ListenPort)
	err := s.loop.Run(s)
	if err != nil && s.stopped.Load() {
		return nil
	}
	return err
}

// HandleEvent implements domain.EventHandler for the two fds this
// service itself owns.
func (s *ProxyService) HandleEvent(fd int, event domain.EventType) error {
	switch fd {
	case s.listenerFD:
		return s.acceptAll()
	case s.dnsFD:
		return s.drainDNSResponses()
	default:
		return nil
	}
}

// acceptAll drains every pending connection on the edge-triggered
// listener, spawning a session per accept.
func (s *ProxyService) acceptAll() error {
	for {
		nfd, sa, err := unix.Accept(s.listenerFD)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return nil
			}
			return err
		}
		s.startSession(nfd, network.PeerIP(sa))
	}
}

// startSession converts a raw accepted fd into a net.Conn and launches
// its session in its own goroutine.
func (s *ProxyService) startSession(fd int, peerIP string) {
	f := os.NewFile(uintptr(fd), "")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		s.log.Error("failed to adopt accepted connection", "error", err)
		unix.Close(fd)
		return
	}

	var sess *session.Session
	sess = session.New(conn, peerIP, s.cfg, s.sink, dnsResolver{svc: s}, nil, func() {
		s.removeSession(sess)
	})
	s.addSession(sess)

	s.log.Info("accepted client", "peer", peerIP)
	go sess.Run()
}

func (s *ProxyService) addSession(sess *session.Session) {
	s.sessionsMu.Lock()
	s.sessions[sess] = struct{}{}
	s.sessionsMu.Unlock()
}

func (s *ProxyService) removeSession(sess *session.Session) {
	s.sessionsMu.Lock()
	delete(s.sessions, sess)
	s.sessionsMu.Unlock()
}

// Stop closes the listening socket, ending the accept loop, then
// transitions every live session to Closing. Idempotent.
func (s *ProxyService) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		unix.Close(s.listenerFD)

		s.sessionsMu.Lock()
		live := make([]*session.Session, 0, len(s.sessions))
		for sess := range s.sessions {
			live = append(live, sess)
		}
		s.sessionsMu.Unlock()

		for _, sess := range live {
			sess.Close()
		}

		unix.Close(s.dnsFD)
		s.loop.Stop()
	})
}

// drainDNSResponses drains every pending datagram on the shared,
// edge-triggered DNS socket and delivers each to the session awaiting
// that transaction ID.
func (s *ProxyService) drainDNSResponses() error {
	buf := make([]byte, 512)
	for {
		n, _, err := unix.Recvfrom(s.dnsFD, buf, 0)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return nil
			}
			return nil
		}

		id, ip, perr := resolver.ParseResponse(buf[:n])
		s.deliverDNS(id, ip, perr)
	}
}

func (s *ProxyService) deliverDNS(id uint16, ip string, err error) {
	s.pendingMu.Lock()
	ch, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()

	if ok {
		ch <- dnsResult{ip: ip, err: err}
	}
}

// dnsResolver implements domain.DomainResolver by round-tripping a
// query through the service's shared DNS UDP socket.
type dnsResolver struct {
	svc *ProxyService
}

func (r dnsResolver) Resolve(host string) (string, error) {
	s := r.svc
	id := uint16(s.nextDNSID.Add(1))

	ch := make(chan dnsResult, 1)
	s.pendingMu.Lock()
	s.pending[id] = ch
	s.pendingMu.Unlock()

	query, err := resolver.BuildQuery(id, host)
	if err != nil {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
		return "", err
	}

	dest := &unix.SockaddrInet4{Port: 53, Addr: DefaultDNSServer}
	if err := unix.Sendto(s.dnsFD, query, 0, dest); err != nil {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
		return "", err
	}

	select {
	case res := <-ch:
		return res.ip, res.err
	case <-time.After(dnsTimeout):
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
		return "", fmt.Errorf("application: timed out resolving %s", host)
	}
}
