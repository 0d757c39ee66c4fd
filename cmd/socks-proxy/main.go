package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"socks5guard/internal/application"
	"socks5guard/internal/config"
	"socks5guard/internal/infrastructure/epoll"
	"socks5guard/internal/logsink"
	"socks5guard/internal/logsink/dbsink"
	"socks5guard/internal/logsink/filesink"
	"socks5guard/internal/logsink/multisink"
	"socks5guard/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to INI configuration file; omit for a permissive local default")
	listenIP := flag.String("listen", "0.0.0.0", "listen address, used only when -config is not given")
	port := flag.Int("port", 1080, "listen port, used only when -config is not given")
	flag.Parse()

	log := logger.Setup(slog.LevelInfo)

	cfg, err := loadConfig(*configPath, *listenIP, *port)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *configPath == "" {
		log.Info("no -config given, running with permissive defaults", "listen", *listenIP, "port", *port)
	}

	sink, err := buildSink(cfg)
	if err != nil {
		log.Error("failed to initialize log sink", "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	eventLoop, err := epoll.New()
	if err != nil {
		log.Error("failed to create event loop", "error", err)
		os.Exit(1)
	}

	proxy, err := application.NewProxyService(eventLoop, log, cfg, sink)
	if err != nil {
		log.Error("failed to create proxy service", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal, stopping")
		proxy.Stop()
	}()

	if err := proxy.Start(); err != nil {
		log.Error("proxy stopped unexpectedly", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path, listenIP string, port int) (*config.Snapshot, error) {
	if path == "" {
		return config.Default(listenIP, port), nil
	}
	return config.Load(path)
}

// buildSink constructs the logsink.Sink matching the configured
// loggingMethod, creating the backing directories first; sqlite3 does
// not create a missing database directory.
func buildSink(cfg *config.Snapshot) (logsink.Sink, error) {
	switch cfg.LoggingMethod {
	case config.LoggingDB:
		if err := os.MkdirAll(cfg.DbFilesDir, 0o755); err != nil {
			return nil, err
		}
		return dbsink.New(dbPath(cfg), cfg.NumActiveThreads)

	case config.LoggingBoth:
		if err := os.MkdirAll(cfg.LogFilesDir, 0o755); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(cfg.DbFilesDir, 0o755); err != nil {
			return nil, err
		}
		db, err := dbsink.New(dbPath(cfg), cfg.NumActiveThreads)
		if err != nil {
			return nil, err
		}
		return multisink.New(filesink.New(cfg.LogFilesDir, cfg.NumActiveThreads), db), nil

	default:
		if err := os.MkdirAll(cfg.LogFilesDir, 0o755); err != nil {
			return nil, err
		}
		return filesink.New(cfg.LogFilesDir, cfg.NumActiveThreads), nil
	}
}

func dbPath(cfg *config.Snapshot) string {
	return filepath.Join(cfg.DbFilesDir, "proxy.db")
}
