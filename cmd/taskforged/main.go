// Command taskforged is the Taskforge server daemon.
// It wires the storage, session, task, and activity stores together and
// serves the REST API and SSE event stream.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/taskforge-io/taskforge/activity"
	"github.com/taskforge-io/taskforge/auth"
	"github.com/taskforge-io/taskforge/config"
	"github.com/taskforge-io/taskforge/internal/version"
	"github.com/taskforge-io/taskforge/server"
	"github.com/taskforge-io/taskforge/storage"
	"github.com/taskforge-io/taskforge/task"
)

var (
	configPath = flag.String("config", "", "path to YAML config file")
	addr       = flag.String("addr", "", "listen address (overrides config)")
)

func main() {
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	logger.Info("starting taskforged",
		"version", version.Version,
		"commit", version.Commit,
	)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir %s: %v", cfg.DataDir, err)
	}
	store, err := storage.Open(filepath.Join(cfg.DataDir, "taskforge.db"), logger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close() //nolint:errcheck

	sessions := auth.NewStore(cfg.Auth, store, logger)
	sessions.Initialize()

	feed := activity.NewInMemoryFeed()
	tasks := task.NewStore(store, sessions, feed, logger)
	tasks.Initialize()

	srv := server.New(*cfg, version.Version, logger)
	srv.SetSessionStore(sessions)
	srv.SetTaskStore(tasks)
	srv.SetFeed(feed)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	logger.Info("shutdown complete")
}
