// Package config defines the Taskforge application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("duration must be a string like \"24h\" or nanoseconds")
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level Taskforge configuration.
type Config struct {
	Server   ServerConfig `json:"server" yaml:"server"`
	Auth     AuthConfig   `json:"auth" yaml:"auth"`
	DataDir  string       `json:"data_dir" yaml:"data_dir"`
	LogLevel string       `json:"log_level" yaml:"log_level"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"` // listen address, e.g., ":7171"
}

// AuthConfig controls authentication and the credential allow-list.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret"`
	// SessionTTL bounds both issued tokens and persisted sessions.
	// Persisted sessions older than this are discarded on restore.
	SessionTTL Duration     `json:"session_ttl" yaml:"session_ttl"`
	Users      []UserConfig `json:"users" yaml:"users"`
}

// UserConfig is one entry in the credential allow-list.
type UserConfig struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Role  string `json:"role" yaml:"role"` // "manager" or "developer"
	// Password is either a bcrypt hash ("$2..." prefix) or a plaintext
	// mock value for local development.
	Password string `json:"password" yaml:"password"`
}

// DefaultConfig returns a config with sensible defaults, including the
// built-in development credential fixtures.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":7171",
		},
		Auth: AuthConfig{
			SessionTTL: Duration(24 * time.Hour),
			Users: []UserConfig{
				{
					ID:       "1",
					Name:     "John Developer",
					Email:    "developer@example.com",
					Role:     "developer",
					Password: "dev123",
				},
				{
					ID:       "2",
					Name:     "Jane Manager",
					Email:    "manager@example.com",
					Role:     "manager",
					Password: "man123",
				},
			},
		},
		DataDir:  "./data",
		LogLevel: "info",
	}
}

// Load reads a YAML config file and returns the parsed configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SlogLevel maps the configured log level name to a slog.Level.
// Unknown names fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
