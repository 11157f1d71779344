package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := ValidateServerURI(c.Server.URI); err != nil {
		return fmt.Errorf("server.uri: %w", err)
	}
	if c.Server.ChannelID == "" {
		return errors.New("server.channel_id is required")
	}
	if c.Server.KeepAlive < 0 {
		return errors.New("server.keep_alive must be >= 0")
	}

	if c.Wake.SignalBuffer < 1 {
		return errors.New("wake.signal_buffer must be >= 1")
	}

	switch c.Queue.Backend {
	case "memory":
		if c.Queue.InitialCapacity < 1 {
			return errors.New("queue.initial_capacity must be >= 1")
		}
	case "sqlite":
		if c.Queue.SQLitePath == "" {
			return errors.New("queue.sqlite_path is required")
		}
	case "postgres":
		if err := c.Queue.Postgres.validate("queue.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("queue.backend must be one of memory, sqlite, postgres, got %q", c.Queue.Backend)
	}

	if c.Status.Enabled && (c.Status.Port < 1 || c.Status.Port > 65535) {
		return fmt.Errorf("status.port must be between 1 and 65535, got %d", c.Status.Port)
	}

	switch c.Logging.Format {
	case "text", "json", "auto":
	default:
		return fmt.Errorf("logging.format must be one of text, json, auto, got %q", c.Logging.Format)
	}

	return nil
}

// ValidateServerURI checks that uri is an absolute ws or wss URL with a host.
func ValidateServerURI(uri string) error {
	if uri == "" {
		return errors.New("uri is required")
	}
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("parse uri: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("scheme must be ws or wss, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
