// Package dbsink implements logsink.Sink as a buffered inserter into a
// SQLite "logs" table, using database/sql and mattn/go-sqlite3.
package dbsink

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type entry struct {
	level   slog.Level
	peerIP  string
	message string
	when    time.Time
}

// Sink inserts one row per record into dbPath's logs table
// (id, timestamp, log_level, IP, message).
type Sink struct {
	db *sql.DB

	queue chan entry
	wg    sync.WaitGroup
}

// New opens (creating if absent) the SQLite database at dbPath,
// ensures the logs table exists, and starts workerCount goroutines
// draining inserts.
func New(dbPath string, workerCount int) (*Sink, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("dbsink: open %s: %w", dbPath, err)
	}

	const createTable = `
		CREATE TABLE IF NOT EXISTS logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT,
			log_level TEXT,
			IP TEXT,
			message TEXT
		)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbsink: create table: %w", err)
	}

	if workerCount < 1 {
		workerCount = 1
	}
	s := &Sink{db: db, queue: make(chan entry, 1024)}
	for i := 0; i < workerCount; i++ {
		s.wg.Add(1)
		go s.work()
	}
	return s, nil
}

func (s *Sink) work() {
	defer s.wg.Done()
	const insert = `INSERT INTO logs (timestamp, log_level, IP, message) VALUES (?, ?, ?, ?)`
	for e := range s.queue {
		s.db.Exec(insert, e.when.Format("2006-01-02 15:04:05"), levelName(e.level), e.peerIP, e.message)
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

func (s *Sink) Close() error {
	close(s.queue)
	s.wg.Wait()
	return s.db.Close()
}
