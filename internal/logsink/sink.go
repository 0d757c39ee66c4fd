// Package logsink defines the abstract logging sink contract: a single
// Enqueue call that hands the record to the implementation's queue
// without waiting for it to be written, with the worker pool and
// delivery mechanics owned entirely by the implementation (file,
// database, or both), each backed by a buffered channel and a
// goroutine pool. Enqueue waits for room while that channel is full.
package logsink

import "log/slog"

// Sink is the one collaborator every session calls into at each
// significant event: state transitions with their reply code, policy
// denial, auth failure/success, successful dial, and any error that
// precipitates Closing. The core never depends on ordering or delivery
// guarantees across calls.
type Sink interface {
	Enqueue(level slog.Level, peerIP, message string)
	Close() error
}
