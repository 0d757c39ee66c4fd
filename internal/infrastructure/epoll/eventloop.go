// Package epoll implements the shared asynchronous runtime the proxy
// acceptor runs on: one epoll instance, edge-triggered, shared across
// the listening socket and the shared DNS UDP socket.
package epoll

import (
	"fmt"

	"golang.org/x/sys/unix"

	"socks5guard/internal/domain"
)

type LinuxEventLoop struct {
	epollFD int
}

func New() (*LinuxEventLoop, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &LinuxEventLoop{epollFD: fd}, nil
}

func (l *LinuxEventLoop) Register(fd int, events domain.EventType) error {
	evt := &unix.EpollEvent{
		Events: uint32(events) | unix.EPOLLET, // Edge-triggered
		Fd:     int32(fd),
	}
	return unix.EpollCtl(l.epollFD, unix.EPOLL_CTL_ADD, fd, evt)
}

func (l *LinuxEventLoop) Unregister(fd int) error {
	return unix.EpollCtl(l.epollFD, unix.EPOLL_CTL_DEL, fd, nil)
}

func (l *LinuxEventLoop) Run(handler domain.EventHandler) error {
	events := make([]unix.EpollEvent, 128)
	for {
		// Closing the epoll fd does not wake a wait already blocked on
		// it, so wait in bounded slices: the next wait after Stop fails
		// and Run returns.
		n, err := unix.EpollWait(l.epollFD, events, 500)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			evMask := events[i].Events

			var domainEv domain.EventType
			if evMask&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				domainEv |= domain.EventRead
			}
			if evMask&unix.EPOLLOUT != 0 {
				domainEv |= domain.EventWrite
			}

			if err := handler.HandleEvent(fd, domainEv); err != nil {
				fmt.Printf("error handling fd %d: %v\n", fd, err)
			}
		}
	}
}

func (l *LinuxEventLoop) Stop() {
	unix.Close(l.epollFD)
}
