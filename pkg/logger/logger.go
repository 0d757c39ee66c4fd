package logger

import (
	"log/slog"
	"os"
)

// Setup builds the process-wide structured logger used for startup and
// operational messages, including one notice per accepted client. The
// per-connection audit trail (authentication results, SOCKS reply
// codes, dial outcomes) goes through internal/logsink instead.
func Setup(level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	handler := slog.NewTextHandler(os.Stderr, opts)
	return slog.New(handler)
}
