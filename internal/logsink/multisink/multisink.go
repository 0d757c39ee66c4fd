// Package multisink fans a single Enqueue call out to several sinks,
// used when the configured loggingMethod is "database + file".
package multisink

import (
	"log/slog"

	"socks5guard/internal/logsink"
)

type Sink struct {
	sinks []logsink.Sink
}

func New(sinks ...logsink.Sink) *Sink {
	return &Sink{sinks: sinks}
}

func (s *Sink) Enqueue(level slog.Level, peerIP, message string) {
	for _, sink := range s.sinks {
		sink.Enqueue(level, peerIP, message)
	}
}

func (s *Sink) Close() error {
	var first error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
