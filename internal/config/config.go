// Package config binds the server's environment table into a typed struct,
// following the envconfig pattern used for the control-plane and llm-proxy
// services in this lineage rather than hand-rolled os.Getenv calls.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the process-wide configuration, loaded once at startup.
type Config struct {
	Port       int    `envconfig:"PORT" default:"8080"`
	Host       string `envconfig:"HOST" default:"0.0.0.0"`
	CORSOrigin string `envconfig:"CORS_ORIGIN" default:"*"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`

	ScrollbackLines int `envconfig:"SCROLLBACK_LINES" default:"50000"`

	BufferPersistIntervalMs int `envconfig:"BUFFER_PERSIST_INTERVAL_MS" default:"5000"`

	SessionCleanupIntervalMs int `envconfig:"SESSION_CLEANUP_INTERVAL_MS" default:"300000"`
	PausedSessionTimeoutMs   int `envconfig:"PAUSED_SESSION_TIMEOUT_MS" default:"172800000"`

	TmuxIdleTimeoutMs      int `envconfig:"TMUX_IDLE_TIMEOUT_MS" default:"172800000"`
	TmuxMaxSessions        int `envconfig:"TMUX_MAX_SESSIONS" default:"400"`
	TmuxCleanupIntervalMs  int `envconfig:"TMUX_CLEANUP_INTERVAL_MS" default:"300000"`

	DataDir string `envconfig:"DATA_DIR" default:"./data"`
}

// Load reads the environment (after any .env file has already been merged
// into it by the caller) into a Config, applying defaults for anything
// unset.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) BufferPersistInterval() time.Duration {
	return time.Duration(c.BufferPersistIntervalMs) * time.Millisecond
}

func (c *Config) SessionCleanupInterval() time.Duration {
	return time.Duration(c.SessionCleanupIntervalMs) * time.Millisecond
}

func (c *Config) PausedSessionTimeout() time.Duration {
	return time.Duration(c.PausedSessionTimeoutMs) * time.Millisecond
}

func (c *Config) TmuxIdleTimeout() time.Duration {
	return time.Duration(c.TmuxIdleTimeoutMs) * time.Millisecond
}

func (c *Config) TmuxCleanupInterval() time.Duration {
	return time.Duration(c.TmuxCleanupIntervalMs) * time.Millisecond
}
