package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Addr != ":7171" {
		t.Errorf("expected default addr :7171, got %q", cfg.Server.Addr)
	}
	if cfg.Auth.SessionTTL.Std() != 24*time.Hour {
		t.Errorf("expected 24h session TTL, got %v", cfg.Auth.SessionTTL)
	}
	if len(cfg.Auth.Users) != 2 {
		t.Fatalf("expected 2 fixture users, got %d", len(cfg.Auth.Users))
	}
	if cfg.Auth.Users[1].Role != "manager" {
		t.Errorf("expected second fixture user to be a manager, got %q", cfg.Auth.Users[1].Role)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskforge.yaml")
	content := `
server:
  addr: ":8080"
auth:
  jwt_secret: test-secret
  session_ttl: 1h
log_level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected addr :8080, got %q", cfg.Server.Addr)
	}
	if cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("expected jwt secret override, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.SessionTTL.Std() != time.Hour {
		t.Errorf("expected 1h session TTL, got %v", cfg.Auth.SessionTTL)
	}
	// Defaults survive a partial file.
	if len(cfg.Auth.Users) != 2 {
		t.Errorf("expected fixture users to survive partial config, got %d", len(cfg.Auth.Users))
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("expected debug level, got %v", cfg.SlogLevel())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestSlogLevel_Unknown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "chatty"
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("expected fallback to info, got %v", cfg.SlogLevel())
	}
}
