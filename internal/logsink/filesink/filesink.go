// Package filesink implements logsink.Sink as a buffered writer to a
// size-rotated text file, with rotation handled by
// gopkg.in/natefinch/lumberjack.v2.
package filesink

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type entry struct {
	level   slog.Level
	peerIP  string
	message string
	when    time.Time
}

// Sink writes one line per record to dir/proxy.log. The file is rotated
// when it reaches 100 MB, and rotated files older than one day are
// removed; it is not rotated at a day boundary.
type Sink struct {
	writer *lumberjack.Logger

	queue chan entry
	wg    sync.WaitGroup
}

// New starts workerCount worker goroutines draining a shared queue into
// the rotated file.
func New(dir string, workerCount int) *Sink {
	if workerCount < 1 {
		workerCount = 1
	}
	s := &Sink{
		writer: &lumberjack.Logger{
			Filename: filepath.Join(dir, "proxy.log"),
			MaxSize:  100, // MB
			MaxAge:   1,   // days a rotated file is kept
			Compress: false,
		},
		queue: make(chan entry, 1024),
	}
	for i := 0; i < workerCount; i++ {
		s.wg.Add(1)
		go s.work()
	}
	return s
}

func (s *Sink) work() {
	defer s.wg.Done()
	for e := range s.queue {
		line := fmt.Sprintf("[%s] [%s] Client IP: %s, %s\n",
			e.when.Format("2006-01-02 15:04:05"), levelName(e.level), e.peerIP, e.message)
		s.writer.Write([]byte(line))
	}
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warning"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

func (s *Sink) Enqueue(level slog.Level, peerIP, message string) {
	s.queue <- entry{level: level, peerIP: peerIP, message: message, when: time.Now()}
}

// Close drains the queue, then closes the underlying file.
func (s *Sink) Close() error {
	close(s.queue)
	s.wg.Wait()
	return s.writer.Close()
}
